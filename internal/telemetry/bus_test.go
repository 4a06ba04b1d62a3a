package telemetry

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameDroppedEvent, 1)

	unsub := bus.Subscribe(func(e FrameDroppedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(FrameDroppedEvent{Stage: "capture", Seq: 9, Reason: "queue full"})

	select {
	case got := <-received:
		if got.Stage != "capture" || got.Seq != 9 {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan StreamStateEvent, 1)
	received2 := make(chan StreamStateEvent, 1)

	unsub1 := bus.Subscribe(func(e StreamStateEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e StreamStateEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(StreamStateEvent{SessionID: "s1", Active: true})

	for i, ch := range []chan StreamStateEvent{received1, received2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i+1)
		}
	}
}

func TestBusTypeIsolation(t *testing.T) {
	bus := New()
	drops := make(chan FrameDroppedEvent, 1)

	unsub := bus.Subscribe(func(e FrameDroppedEvent) { drops <- e })
	defer unsub()

	bus.Publish(StatsResetEvent{})

	select {
	case e := <-drops:
		t.Fatalf("drop subscriber received %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(s string) {})
	unsub()
}
