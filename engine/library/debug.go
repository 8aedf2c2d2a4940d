package library

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// ValidateSaneExecutionTime arms a watchdog around a bounded operation. If the returned func
// is not called within deadlock.Opts.DeadlockTimeout, go-deadlock reports the stuck goroutine.
// The returned func also traces how long the operation took.
func ValidateSaneExecutionTime(operation string) func() {
	started := time.Now()
	held := &deadlock.Mutex{}
	held.Lock()
	go func() {
		held.Lock()
		held.Unlock()
	}()
	return func() {
		held.Unlock()
		LogCLI(fmt.Sprintf("%s finished in %s", operation, time.Since(started).Round(time.Millisecond)), 5)
	}
}
