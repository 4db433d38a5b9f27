package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Eventf logs a per-event diagnostic tagged with observation, event and
// telescope identifiers so skipped units can be traced back to their inputs.
// A negative telescope ID marks an event-level (stereo) message.
func Eventf(obsID, eventID int64, telID int, format string, v ...interface{}) {
	if telID < 0 {
		Logf("[obs %d event %d] "+format, append([]interface{}{obsID, eventID}, v...)...)
		return
	}
	Logf("[obs %d event %d tel %d] "+format, append([]interface{}{obsID, eventID, telID}, v...)...)
}
