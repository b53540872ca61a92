package testutil

import (
	"sync"
	"testing"
	"time"
)

func TestLockMetricsSerializes(t *testing.T) {
	var mu sync.Mutex
	running := 0

	t.Run("group", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			t.Run("", func(t *testing.T) {
				t.Parallel()
				LockMetrics(t)

				mu.Lock()
				running++
				if running != 1 {
					t.Errorf("expected 1 test holding the lock, got %d", running)
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
			})
		}
	})
}

func TestLockMetricsReleasedOnCleanup(t *testing.T) {
	t.Run("holder", func(t *testing.T) {
		LockMetrics(t)
	})

	done := make(chan struct{})
	go func() {
		metricsTestMutex.Lock()
		metricsTestMutex.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected the lock to be released after the subtest finished")
	}
}
