package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when a frame stream must run to
// completion but the data is no longer needed (e.g. after a capture session
// is stopped mid-segment).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
