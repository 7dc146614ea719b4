// Package eventq holds the non-blocking channel sends used to hand state
// from background goroutines to UI consumers.
package eventq

// Offer performs a non-blocking send.
// It returns true when the value was sent and false when the channel is full
// or closed.
func Offer[T any](ch chan<- T, value T) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// Replace delivers value on a buffered channel, discarding the oldest queued
// value when the buffer is full. Consumers that only care about the latest
// state (snapshots, progress) never block the producer and never observe a
// stale value after a fresher one has been queued.
func Replace[T any](ch chan T, value T) bool {
	for attempt := 0; attempt < 2; attempt++ {
		if Offer(ch, value) {
			return true
		}
		select {
		case <-ch:
		default:
		}
	}
	return false
}
