package queue

import (
	"context"
	"fmt"
	"time"

	"streamlation/packages/backend/translation"
)

// DefaultAwaitTimeout bounds how long RemoteTranslator waits for a worker
// to publish a result before giving up.
const DefaultAwaitTimeout = 10 * time.Second

// RemoteTranslator implements translation.Translator by enqueueing batch
// jobs onto a Queue and waiting for a translationworker process to publish
// the result. It lets C4 scale out translation work across processes
// without changing the Adaptive Batch Translator's call shape.
type RemoteTranslator struct {
	queue        *Queue
	sessionID    string
	awaitTimeout time.Duration
	pairs        []translation.LanguagePair
}

// NewRemoteTranslator constructs a RemoteTranslator bound to one session.
func NewRemoteTranslator(q *Queue, sessionID string, pairs []translation.LanguagePair) *RemoteTranslator {
	return &RemoteTranslator{queue: q, sessionID: sessionID, awaitTimeout: DefaultAwaitTimeout, pairs: pairs}
}

// Translate enqueues a single-text batch and waits for the result.
func (r *RemoteTranslator) Translate(ctx context.Context, text string, sourceLang, targetLang string) (translation.Translation, error) {
	results, err := r.TranslateBatch(ctx, []string{text}, sourceLang, targetLang)
	if err != nil {
		return translation.Translation{}, err
	}
	if len(results) != 1 {
		return translation.Translation{}, fmt.Errorf("queue: expected 1 translation, got %d", len(results))
	}
	return results[0], nil
}

// TranslateBatch enqueues the batch job and blocks until a worker
// publishes its result or ctx/timeout expires.
func (r *RemoteTranslator) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]translation.Translation, error) {
	job, err := r.queue.Enqueue(ctx, r.sessionID, texts, sourceLang, targetLang)
	if err != nil {
		return nil, err
	}

	awaitCtx, cancel := context.WithTimeout(ctx, r.awaitTimeout)
	defer cancel()

	result, err := r.queue.AwaitResult(awaitCtx, job.ReplyKey, r.awaitTimeout)
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("queue: worker reported error: %s", result.Error)
	}
	return result.Translations, nil
}

// SupportedLanguages reports the pairs this translator was configured
// with; the actual provider lives behind the worker.
func (r *RemoteTranslator) SupportedLanguages() []translation.LanguagePair {
	return r.pairs
}

// Health always reports healthy: a remote translator's real health is the
// worker pool's, which this type has no direct visibility into.
func (r *RemoteTranslator) Health() translation.HealthStatus {
	return translation.HealthStatus{Healthy: true, Message: "delegated to translationworker pool"}
}

var _ translation.Translator = (*RemoteTranslator)(nil)
