package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// TestModeEnv makes binaries exit before touching external services.
const TestModeEnv = "SITECOST_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv after the environment changed.
func RefreshTestMode() {
	testMode.Store(os.Getenv(TestModeEnv) == "1")
}
