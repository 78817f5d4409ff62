// Package testing prepares a hermetic environment for packages that import
// it for side effects.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var hermeticDefaults = map[string]string{
	"SITECOST_TEST_MODE": "1",
	"STORE_DRIVER":       "memory",
	"COST_CACHE_TTL":     "0s",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range hermeticDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
