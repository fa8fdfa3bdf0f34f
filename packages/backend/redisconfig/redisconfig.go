// Package redisconfig mirrors a session's RuntimeConfig into Redis so that
// multiple coordinator replicas (or an out-of-process admin tool) observe
// the same live tuning values. It is an optional deployment concern: a
// single-process deployment can run entirely on coordinator.Config without
// this package.
package redisconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streamlation/packages/backend/coordinator"
)

// DefaultTimeout bounds a single Redis round trip.
const DefaultTimeout = 5 * time.Second

func keyFor(sessionID string) string {
	return fmt.Sprintf("streamlation:session:%s:config", sessionID)
}

func channelFor(sessionID string) string {
	return fmt.Sprintf("streamlation:session:%s:config:changes", sessionID)
}

// Store publishes a session's RuntimeConfig to Redis on every change and
// can load the last-known value back, e.g. after a replica restart.
type Store struct {
	client    *goredis.Client
	sessionID string
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// New constructs a Store from an existing go-redis client.
func New(client *goredis.Client, sessionID string, logger *zap.SugaredLogger) *Store {
	return &Store{client: client, sessionID: sessionID, timeout: DefaultTimeout, logger: logger}
}

// NewFromURL parses addr (redis://[:password@]host:port[/db]) and
// constructs a Store.
func NewFromURL(addr, sessionID string, logger *zap.SugaredLogger) (*Store, error) {
	opts, err := goredis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("redisconfig: invalid redis addr: %w", err)
	}
	return New(goredis.NewClient(opts), sessionID, logger), nil
}

// Attach registers a coordinator.Config listener that publishes every
// update to Redis, and attempts to seed cfg from the last persisted value.
func (s *Store) Attach(ctx context.Context, cfg *coordinator.Config) {
	if rc, err := s.Load(ctx); err == nil && rc != nil {
		cfg.Update(toUpdate(*rc))
	}
	cfg.OnChange(func(rc coordinator.RuntimeConfig) {
		saveCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Save(saveCtx, rc); err != nil {
			s.logger.Warnw("failed to persist runtime config to redis", "session", s.sessionID, "error", err)
		}
	})
}

// Save writes rc as JSON and publishes the change on the session's config
// channel.
func (s *Store) Save(ctx context.Context, rc coordinator.RuntimeConfig) error {
	body, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("redisconfig: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, keyFor(s.sessionID), body, 0).Err(); err != nil {
		return fmt.Errorf("redisconfig: set: %w", err)
	}
	if err := s.client.Publish(ctx, channelFor(s.sessionID), body).Err(); err != nil {
		return fmt.Errorf("redisconfig: publish: %w", err)
	}
	return nil
}

// Load reads the last persisted RuntimeConfig, or nil if none exists yet.
func (s *Store) Load(ctx context.Context) (*coordinator.RuntimeConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.client.Get(ctx, keyFor(s.sessionID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redisconfig: get: %w", err)
	}

	var rc coordinator.RuntimeConfig
	if err := json.Unmarshal(body, &rc); err != nil {
		return nil, fmt.Errorf("redisconfig: unmarshal: %w", err)
	}
	return &rc, nil
}

// Subscribe streams config changes published by other replicas for this
// session. The caller is responsible for applying them (e.g. via
// cfg.Update) and for eventually cancelling ctx to end the subscription.
func (s *Store) Subscribe(ctx context.Context) <-chan coordinator.RuntimeConfig {
	out := make(chan coordinator.RuntimeConfig)
	sub := s.client.Subscribe(ctx, channelFor(s.sessionID))

	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				s.logger.Warnw("failed to close redis subscription", "error", err)
			}
		}()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rc coordinator.RuntimeConfig
				if err := json.Unmarshal([]byte(msg.Payload), &rc); err != nil {
					s.logger.Warnw("failed to decode config change", "error", err)
					continue
				}
				select {
				case out <- rc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func toUpdate(rc coordinator.RuntimeConfig) coordinator.ConfigUpdate {
	sourceLang := rc.SourceLang
	targetLang := rc.TargetLang
	debounce := rc.DebounceMs
	batchSize := rc.BatchSize
	batchTimeout := rc.BatchTimeoutMs
	syncMode := rc.SyncDisplayMode
	interimEnabled := rc.InterimDebounceEnabled
	return coordinator.ConfigUpdate{
		SourceLang:             &sourceLang,
		TargetLang:             &targetLang,
		DebounceMs:             &debounce,
		BatchSize:              &batchSize,
		BatchTimeoutMs:         &batchTimeout,
		SyncDisplayMode:        &syncMode,
		InterimDebounceEnabled: &interimEnabled,
	}
}
