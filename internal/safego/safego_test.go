package safego

import (
	"testing"
	"time"
)

func TestGoRunsFunction(t *testing.T) {
	done := make(chan struct{})

	Go(func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not run within timeout")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})

	// The panic must be recovered rather than crashing the test binary.
	Go(func() {
		defer close(done)
		panic("intentional panic in test")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not complete after panic")
	}
}
