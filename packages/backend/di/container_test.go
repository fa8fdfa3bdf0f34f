package di

import (
	"context"
	"testing"
	"time"

	"streamlation/packages/backend/coordinator"
	"streamlation/packages/backend/stt"
	"streamlation/packages/backend/transport"
)

func TestNewTestContainer_WiresStubs(t *testing.T) {
	t.Parallel()
	c, source := NewTestContainer()
	if c.Translator == nil || c.Source == nil {
		t.Fatal("expected translator and source to be wired")
	}
	if source == nil {
		t.Fatal("expected stub source to be returned for test configuration")
	}
}

func TestContainer_NewCoordinatorWiresSinkAndTranslator(t *testing.T) {
	t.Parallel()
	c, _ := NewTestContainer()
	sink := transport.NewRecordingSink()
	c.Sink = sink

	co := c.NewCoordinator(context.Background(), "session-1", coordinator.Options{
		InitialConfig: coordinator.DefaultRuntimeConfig(),
	})

	co.HandleEvent(context.Background(), stt.HypothesisEvent{Text: "Hello", IsFinal: true})

	deadline := time.After(2 * time.Second)
	for {
		if len(sink.Messages()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for wired coordinator to emit a message")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
