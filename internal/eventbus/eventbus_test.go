package eventbus

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case ev := <-sub:
		if ev != "hello" {
			t.Fatalf("unexpected event %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_NonBlockingPublish(t *testing.T) {
	b := New(WithBuffer(1))
	sub := b.Subscribe()
	b.Publish(1)
	b.Publish(2) // dropped, subscriber is full
	if ev := <-sub; ev != 1 {
		t.Fatalf("expected first event, got %v", ev)
	}
	select {
	case ev := <-sub:
		t.Fatalf("expected drop, got %v", ev)
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	b.Publish("ignored")
}

func TestBus_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	// Publish and a second Close must be safe after shutdown.
	b.Publish("ignored")
	b.Close()
	if late := b.Subscribe(); late == nil {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
