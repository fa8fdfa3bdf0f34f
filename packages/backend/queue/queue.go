// Package queue implements a Redis-backed distributed batch-translation
// job queue: an optional horizontal-scaling alternative to calling a
// translation.Translator in-process from the Adaptive Batch Translator.
// The coordinator enqueues jobs; one or more translationworker processes
// pop and execute them and publish the result back on a per-job reply
// channel.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"streamlation/packages/backend/translation"
)

// DefaultQueueKey is the default Redis list used as the job queue.
const DefaultQueueKey = "streamlation:batch:jobs"

// DefaultPopTimeout bounds a single BRPOP wait.
const DefaultPopTimeout = 5 * time.Second

// Job is one batch-translation request handed to a worker.
type Job struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"session_id"`
	Texts      []string `json:"texts"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
	ReplyKey   string   `json:"reply_key"`
}

// Result is what a worker publishes back after executing a Job.
type Result struct {
	JobID        string                    `json:"job_id"`
	Translations []translation.Translation `json:"translations"`
	Error        string                    `json:"error,omitempty"`
}

func replyKeyFor(jobID string) string {
	return fmt.Sprintf("streamlation:batch:reply:%s", jobID)
}

// Queue is a Redis-backed LPUSH/BRPOP job queue.
type Queue struct {
	client  *goredis.Client
	key     string
	timeout time.Duration
}

// New constructs a Queue from an existing go-redis client.
func New(client *goredis.Client) *Queue {
	return &Queue{client: client, key: DefaultQueueKey, timeout: DefaultPopTimeout}
}

// NewFromAddr constructs a Queue from a bare host:port Redis address.
func NewFromAddr(addr string) *Queue {
	return New(goredis.NewClient(&goredis.Options{Addr: addr}))
}

// Enqueue pushes a job onto the queue and returns its generated ID and
// reply key, which the caller should pass to AwaitResult.
func (q *Queue) Enqueue(ctx context.Context, sessionID string, texts []string, sourceLang, targetLang string) (Job, error) {
	job := Job{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Texts:      texts,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}
	job.ReplyKey = replyKeyFor(job.ID)

	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return Job{}, fmt.Errorf("queue: lpush: %w", err)
	}
	return job, nil
}

// Pop blocks up to timeout for the next job. Returns nil, nil on timeout
// with no job available.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	if timeout <= 0 {
		timeout = q.timeout
	}
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: brpop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("queue: unexpected brpop reply shape")
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return &job, nil
}

// PublishResult pushes a job's result onto its reply key and sets a short
// expiry so unclaimed replies don't accumulate.
func (q *Queue) PublishResult(ctx context.Context, result Result, replyKey string) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	if err := q.client.LPush(ctx, replyKey, body).Err(); err != nil {
		return fmt.Errorf("queue: lpush result: %w", err)
	}
	return q.client.Expire(ctx, replyKey, time.Minute).Err()
}

// AwaitResult blocks up to timeout for the result of the job with the
// given reply key.
func (q *Queue) AwaitResult(ctx context.Context, replyKey string, timeout time.Duration) (*Result, error) {
	res, err := q.client.BRPop(ctx, timeout, replyKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, fmt.Errorf("queue: timed out waiting for result")
		}
		return nil, fmt.Errorf("queue: brpop result: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("queue: unexpected brpop reply shape")
	}

	var result Result
	if err := json.Unmarshal([]byte(res[1]), &result); err != nil {
		return nil, fmt.Errorf("queue: unmarshal result: %w", err)
	}
	return &result, nil
}

// Close releases the underlying Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}
