package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGate_BoundsConcurrency(t *testing.T) {
	const capacity = 3
	gate := NewGate(capacity, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Do(context.Background(), func() error {
				time.Sleep(5 * time.Millisecond)
				return nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := gate.Peak(); peak > capacity {
		t.Errorf("peak in-flight = %d, want <= %d", peak, capacity)
	}
	if inFlight := gate.InFlight(); inFlight != 0 {
		t.Errorf("in-flight after drain = %d, want 0", inFlight)
	}
}

func TestGate_DoReleasesSlotOnError(t *testing.T) {
	gate := NewGate(1, testLogger())

	failure := errors.New("handler failed")
	if err := gate.Do(context.Background(), func() error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("Do error = %v, want %v", err, failure)
	}

	// A leaked slot would make this second Do block forever
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.Do(ctx, func() error { return nil }); err != nil {
		t.Fatalf("second Do: %v", err)
	}
}

func TestGate_EnterHonorsCancelledContext(t *testing.T) {
	gate := NewGate(1, testLogger())
	if err := gate.Enter(context.Background()); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	defer gate.Leave()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gate.Enter(ctx); err == nil {
		gate.Leave()
		t.Fatal("Enter with cancelled context succeeded, want error")
	}
}

func TestGate_ClampsInvalidCapacity(t *testing.T) {
	gate := NewGate(0, testLogger())
	if got := gate.Capacity(); got != 1 {
		t.Errorf("capacity = %d, want 1", got)
	}
}
