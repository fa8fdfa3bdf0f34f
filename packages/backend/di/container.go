// Package di wires together the concrete implementations a session's
// Coordinator depends on: a Translator, an stt.Source, a Sink, and the
// optional Redis-backed config mirror. Production wiring and test wiring
// differ only in which options are passed.
package di

import (
	"context"

	"go.uber.org/zap"

	"streamlation/packages/backend/coordinator"
	"streamlation/packages/backend/redisconfig"
	"streamlation/packages/backend/stt"
	"streamlation/packages/backend/translation"
)

// Container holds the dependencies a Coordinator needs for one session.
type Container struct {
	Translator  translation.Translator
	Source      stt.Source
	Sink        coordinator.Sink
	ConfigStore *redisconfig.Store
	Logger      *zap.SugaredLogger
}

// ContainerOption configures a Container during construction.
type ContainerOption func(*Container)

// WithTranslator sets the translator implementation.
func WithTranslator(t translation.Translator) ContainerOption {
	return func(c *Container) { c.Translator = t }
}

// WithSource sets the STT source implementation.
func WithSource(s stt.Source) ContainerOption {
	return func(c *Container) { c.Source = s }
}

// WithSink sets the delivery sink implementation.
func WithSink(s coordinator.Sink) ContainerOption {
	return func(c *Container) { c.Sink = s }
}

// WithConfigStore attaches a distributed config mirror.
func WithConfigStore(s *redisconfig.Store) ContainerOption {
	return func(c *Container) { c.ConfigStore = s }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.SugaredLogger) ContainerOption {
	return func(c *Container) { c.Logger = l }
}

// NewContainer creates a Container with the given options applied over
// sane defaults (no-op zap logger; Translator/Source/Sink left nil and
// expected to be supplied by the caller).
func NewContainer(opts ...ContainerOption) *Container {
	c := &Container{Logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewTestContainer creates a Container wired entirely with deterministic
// stub/in-memory implementations, for tests and local development without
// external dependencies.
func NewTestContainer() (*Container, *stt.StubSource) {
	translator := translation.NewStubTranslator(nil)
	source := stt.NewStubSource(stt.StubSourceConfig{})

	c := NewContainer(
		WithTranslator(translator),
		WithSource(source),
	)
	return c, source
}

// NewCoordinator constructs a Coordinator for sessionID from the
// container's wired dependencies. The caller must supply Sink before
// calling this (WithSink), since a session's sink is connection-specific.
func (c *Container) NewCoordinator(ctx context.Context, sessionID string, opts coordinator.Options) *coordinator.Coordinator {
	co := coordinator.New(ctx, sessionID, c.Translator, c.Sink, opts, c.Logger)
	if c.ConfigStore != nil {
		c.ConfigStore.Attach(ctx, co.Config())
	}
	return co
}
