package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"streamlation/packages/backend/translation"
)

func newInterimHarness(t *testing.T, rc RuntimeConfig) (*InterimTranslator, *translation.StubTranslator, func() []OutboundMessage) {
	t.Helper()
	cfg := NewConfig(rc)

	var mu sync.Mutex
	var got []OutboundMessage
	sink := SinkFunc(func(ctx context.Context, msg OutboundMessage) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	})

	tr := translation.NewStubTranslator(&translation.StubTranslatorConfig{
		ProcessingDelay: 5 * time.Millisecond,
		Dictionary: map[string]map[string]string{"zh": {
			"He":          "他",
			"Hello":       "你好",
			"Hello world": "你好世界",
		}},
	})
	it := NewInterimTranslator(tr, cfg, sink, noopLogger())
	return it, tr, func() []OutboundMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]OutboundMessage{}, got...)
	}
}

func TestInterimTranslator_SupersessionDropsStaleWork(t *testing.T) {
	t.Parallel()
	rc := DefaultRuntimeConfig()
	rc.DebounceMs = 0
	rc.InterimDebounceEnabled = false
	it, _, results := newInterimHarness(t, rc)

	it.Submit(context.Background(), "He")
	it.Submit(context.Background(), "Hello")
	it.Submit(context.Background(), "Hello world")

	time.Sleep(100 * time.Millisecond)

	msgs := results()
	if len(msgs) == 0 {
		t.Fatal("expected at least the final submission's translation to land")
	}
	last := msgs[len(msgs)-1]
	if last.Translation == nil || last.Translation.FullText != "你好世界" {
		t.Fatalf("expected last delivered translation to be for the final submit, got %+v", last.Translation)
	}
}

func TestInterimTranslator_CancelYieldsNoOutput(t *testing.T) {
	t.Parallel()
	rc := DefaultRuntimeConfig()
	rc.InterimDebounceEnabled = false
	it, _, results := newInterimHarness(t, rc)

	it.Submit(context.Background(), "Hello")
	it.Cancel()

	time.Sleep(50 * time.Millisecond)

	if len(results()) != 0 {
		t.Fatalf("expected no output after immediate cancel, got %d messages", len(results()))
	}
}

func TestInterimTranslator_SyncDisplayModeEmitsCombinedMessage(t *testing.T) {
	t.Parallel()
	rc := DefaultRuntimeConfig()
	rc.InterimDebounceEnabled = false
	rc.SyncDisplayMode = true
	it, _, results := newInterimHarness(t, rc)

	it.Submit(context.Background(), "Hello")

	deadline := time.After(2 * time.Second)
	for {
		if len(results()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for combined interim message")
		case <-time.After(5 * time.Millisecond):
		}
	}

	msg := results()[0]
	if msg.Original.FullText != "Hello" || msg.Original.Delta != "Hello" {
		t.Fatalf("expected combined message to carry original, got %+v", msg.Original)
	}
	if msg.Translation == nil || msg.Translation.FullText != "你好" {
		t.Fatalf("expected combined message to carry translation, got %+v", msg.Translation)
	}
}

// TestInterimTranslator_DebounceCoalescesBurstIntoOneCall covers spec
// scenario S5: ten rapid interim submissions within the debounce window
// must reach the translator exactly once, carrying only the last
// snapshot.
func TestInterimTranslator_DebounceCoalescesBurstIntoOneCall(t *testing.T) {
	t.Parallel()
	rc := DefaultRuntimeConfig()
	rc.DebounceMs = 60 * time.Millisecond
	rc.InterimDebounceEnabled = true
	it, tr, results := newInterimHarness(t, rc)

	snapshots := []string{"H", "He", "Hel", "Hell", "Hello", "Hello ", "Hello w", "Hello wo", "Hello wor", "Hello world"}
	for _, s := range snapshots {
		it.Submit(context.Background(), s)
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(results()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for debounced translation, got %d messages so far", len(results()))
		case <-time.After(5 * time.Millisecond):
		}
	}

	if calls := tr.TranslateCalls(); calls != 1 {
		t.Fatalf("expected exactly one Translate call for the whole burst, got %d", calls)
	}

	msg := results()[0]
	if msg.Translation == nil || msg.Translation.FullText != "你好世界" {
		t.Fatalf("expected the single call to translate the last snapshot, got %+v", msg.Translation)
	}
}

func TestInterimTranslator_FailureYieldsNoOutput(t *testing.T) {
	t.Parallel()
	rc := DefaultRuntimeConfig()
	rc.InterimDebounceEnabled = false

	var mu sync.Mutex
	var got []OutboundMessage
	sink := SinkFunc(func(ctx context.Context, msg OutboundMessage) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	})
	failing := translation.NewStubTranslator(&translation.StubTranslatorConfig{
		ProcessingDelay: 1 * time.Millisecond,
		FailNext:        1,
	})
	it := NewInterimTranslator(failing, NewConfig(rc), sink, noopLogger())

	it.Submit(context.Background(), "Hello")
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 0 {
		t.Fatalf("expected no outbound message on translation failure, got %d", len(got))
	}
}
