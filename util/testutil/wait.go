package testutil

import (
	"testing"
	"time"
)

const pollInterval = 20 * time.Millisecond

// WaitFor polls condition until it holds, failing the test after timeout.
//
//	testutil.WaitFor(t, time.Second, "client to connect", func() bool {
//	    return server.Clients() == 1
//	})
func WaitFor(t testing.TB, timeout time.Duration, message string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s (waited %v)", message, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// Receive returns the next value from ch, failing the test after timeout.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration, message string) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("Channel closed while waiting for %s", message)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting for %s (waited %v)", message, timeout)
	}
	var zero T
	return zero
}
