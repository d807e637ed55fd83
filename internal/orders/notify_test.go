package orders

import (
	gosync "sync"
	"sync/atomic"
	"testing"
)

func TestGateAllowsExactlyOneWinner(t *testing.T) {
	gate := NewNotificationGate()

	const racers = 50
	var winners int32
	var wg gosync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if gate.ShouldNotify("order-1") {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestGateTracksOrdersIndependently(t *testing.T) {
	gate := NewNotificationGate()

	if !gate.ShouldNotify("order-1") {
		t.Error("first check for order-1 denied")
	}
	if !gate.ShouldNotify("order-2") {
		t.Error("first check for order-2 denied")
	}
	if gate.ShouldNotify("order-1") {
		t.Error("second check for order-1 allowed")
	}
}

func TestResetReArmsOneOrder(t *testing.T) {
	gate := NewNotificationGate()

	gate.ShouldNotify("order-1")
	gate.ShouldNotify("order-2")
	gate.Reset("order-1")

	if !gate.ShouldNotify("order-1") {
		t.Error("reset order not re-armed")
	}
	if gate.ShouldNotify("order-2") {
		t.Error("reset leaked onto an unrelated order")
	}
}
