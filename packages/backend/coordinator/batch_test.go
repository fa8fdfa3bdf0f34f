package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"streamlation/packages/backend/translation"
)

func newTestConfig(batchSize int, batchTimeout time.Duration) *Config {
	rc := DefaultRuntimeConfig()
	rc.BatchSize = batchSize
	rc.BatchTimeoutMs = batchTimeout
	return NewConfig(rc)
}

func collectingSink() (*Dispatcher, func() []OutboundMessage) {
	var mu sync.Mutex
	var got []OutboundMessage
	sink := SinkFunc(func(ctx context.Context, msg OutboundMessage) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	})
	d := NewDispatcher(sink, 0, noopLogger())
	return d, func() []OutboundMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]OutboundMessage{}, got...)
	}
}

func noopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestBatchTranslator_EmptyQueueFastPath(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(3, 500*time.Millisecond)
	dispatcher, results := collectingSink()
	tr := translation.NewStubTranslator(&translation.StubTranslatorConfig{
		ProcessingDelay: 10 * time.Millisecond,
		Dictionary:      map[string]map[string]string{"zh": {"A": "甲"}},
	})
	bt := NewBatchTranslator(context.Background(), tr, cfg, dispatcher, NewCircuitBreaker(0, 0), noopLogger())

	bt.Submit(Sentence{Sequence: 0, SourceText: "A", SourceLang: "en"})

	deadline := time.After(2 * time.Second)
	for {
		if len(results()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for single-item flush")
		case <-time.After(5 * time.Millisecond):
		}
	}

	msg := results()[0]
	if msg.Translation == nil || msg.Translation.FullText != "甲" {
		t.Fatalf("expected translation 甲, got %+v", msg.Translation)
	}
}

func TestBatchTranslator_BacklogCoalescesBySize(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(3, 5*time.Second)
	dispatcher, results := collectingSink()
	tr := translation.NewStubTranslator(&translation.StubTranslatorConfig{
		ProcessingDelay: 200 * time.Millisecond,
		Dictionary: map[string]map[string]string{"zh": {
			"A": "甲", "B": "乙", "C": "丙",
		}},
	})
	bt := NewBatchTranslator(context.Background(), tr, cfg, dispatcher, NewCircuitBreaker(0, 0), noopLogger())

	bt.Submit(Sentence{Sequence: 0, SourceText: "A", SourceLang: "en"})
	time.Sleep(5 * time.Millisecond) // A starts its in-flight call; queue now empty but in-flight
	bt.Submit(Sentence{Sequence: 1, SourceText: "B", SourceLang: "en"})
	bt.Submit(Sentence{Sequence: 2, SourceText: "C", SourceLang: "en"})

	deadline := time.After(3 * time.Second)
	for {
		if len(results()) == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, got %d messages", len(results()))
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := results()
	if got[0].Original.FullText != "A" || got[1].Original.FullText != "B" || got[2].Original.FullText != "C" {
		t.Fatalf("expected order A,B,C, got %v", []string{got[0].Original.FullText, got[1].Original.FullText, got[2].Original.FullText})
	}
}

func TestBatchTranslator_FailureDispatchesNilTranslation(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(3, 500*time.Millisecond)
	dispatcher, results := collectingSink()
	tr := translation.NewStubTranslator(&translation.StubTranslatorConfig{
		ProcessingDelay: 1 * time.Millisecond,
		FailNext:        1,
	})
	bt := NewBatchTranslator(context.Background(), tr, cfg, dispatcher, NewCircuitBreaker(0, 0), noopLogger())

	bt.Submit(Sentence{Sequence: 0, SourceText: "A", SourceLang: "en"})

	deadline := time.After(2 * time.Second)
	for {
		if len(results()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for flush")
		case <-time.After(5 * time.Millisecond):
		}
	}

	msg := results()[0]
	if msg.Translation != nil {
		t.Fatalf("expected nil translation on failure, got %+v", msg.Translation)
	}
	if msg.Original.FullText != "A" {
		t.Fatalf("expected original preserved verbatim, got %q", msg.Original.FullText)
	}
}
