package driven

// ProgressSink receives human-readable progress messages.
// Reporting is best-effort: implementations must not block or panic.
type ProgressSink interface {
	Report(message string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(message string)

// Report calls f(message).
func (f ProgressFunc) Report(message string) {
	f(message)
}
