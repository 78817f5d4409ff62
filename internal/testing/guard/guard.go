// Package guard switches the process into test mode when imported, so
// command entry points return before dialing external services.
package guard

import (
	"os"

	"github.com/odyssey-erp/sitecost/internal/app"
)

func init() {
	if os.Getenv(app.TestModeEnv) == "" {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
	app.RefreshTestMode()
}
