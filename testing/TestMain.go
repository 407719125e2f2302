// Package testing is blank-imported by test packages that load the runtime
// configuration. It switches entrypoints into test mode and selects in-process
// locks so no Redis is needed.
package testing

import (
	"os"
	stdtesting "testing"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var defaults = map[string]string{
	"LOCK_BACKEND": "local",
	"APP_ENV":      "test",
	"LOG_FORMAT":   "json",
}

func init() {
	_ = os.Setenv(testModeEnv, "1")
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs the package tests after init has prepared the environment.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
