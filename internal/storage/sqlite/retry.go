package sqlite

import (
	"strings"
	"time"
)

const (
	busyRetries = 5
	busyBackoff = 50 * time.Millisecond
)

// retryOnBusy runs fn, retrying with linear backoff while sqlite
// reports the database locked. Other errors return immediately.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
