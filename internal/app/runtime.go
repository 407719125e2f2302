package app

import (
	"os"
	"sync"
)

// TestModeEnv marks a process started by `go test`. Both binaries return
// before touching Postgres or Redis when it is "1".
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the process runs under tests. The environment is
// read once.
func InTestMode() bool {
	return testMode()
}
