package translation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var errTranslationUnavailable = errors.New("stub translator: simulated failure")

// StubTranslatorConfig configures the stub translator behavior.
type StubTranslatorConfig struct {
	// ProcessingDelay simulates translation processing time.
	ProcessingDelay time.Duration
	// Dictionary maps source text to translated text.
	// If nil, returns "[LANG] " prefix + original text.
	Dictionary map[string]map[string]string // [targetLang][sourceText]translatedText
	// SupportedPairs defines available language pairs.
	SupportedPairs []LanguagePair
	// FailNext, if set, is decremented on each call and returns an error
	// while non-zero. Used by tests to exercise the failure paths in C3/C4.
	FailNext int
}

// DefaultStubTranslatorConfig returns sensible defaults for testing.
func DefaultStubTranslatorConfig() *StubTranslatorConfig {
	return &StubTranslatorConfig{
		ProcessingDelay: 50 * time.Millisecond,
		Dictionary: map[string]map[string]string{
			"zh": {
				"Hello":       "你好",
				"Hello world": "你好世界",
				"Hello world.": "你好，世界。",
				"This is a test.": "这是一个测试。",
			},
			"es": {
				"Hello world.":   "Hola mundo.",
				"This is a test.": "Esto es una prueba.",
			},
		},
		SupportedPairs: []LanguagePair{
			{Source: "en", Target: "zh"},
			{Source: "en", Target: "es"},
			{Source: "zh", Target: "en"},
		},
	}
}

// StubTranslator is a test implementation that returns deterministic
// translations without calling a real provider.
type StubTranslator struct {
	config *StubTranslatorConfig

	translateCalls atomic.Int64
}

// NewStubTranslator creates a new stub translator with the given config.
func NewStubTranslator(config *StubTranslatorConfig) *StubTranslator {
	if config == nil {
		config = DefaultStubTranslatorConfig()
	}
	return &StubTranslator{config: config}
}

// Translate converts a single text segment.
func (s *StubTranslator) Translate(ctx context.Context, text string, sourceLang, targetLang string) (Translation, error) {
	s.translateCalls.Add(1)
	if err := s.maybeFail(); err != nil {
		return Translation{}, err
	}
	if err := s.sleep(ctx); err != nil {
		return Translation{}, err
	}

	return Translation{
		SourceText:     text,
		TranslatedText: s.lookupTranslation(text, targetLang),
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		Confidence:     0.92,
	}, nil
}

// TranslateBatch converts multiple text segments, preserving order.
func (s *StubTranslator) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]Translation, error) {
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}

	results := make([]Translation, len(texts))
	for i, text := range texts {
		results[i] = Translation{
			SourceText:     text,
			TranslatedText: s.lookupTranslation(text, targetLang),
			SourceLang:     sourceLang,
			TargetLang:     targetLang,
			Confidence:     0.92,
		}
	}
	return results, nil
}

func (s *StubTranslator) maybeFail() error {
	if s.config.FailNext > 0 {
		s.config.FailNext--
		return errTranslationUnavailable
	}
	return nil
}

func (s *StubTranslator) sleep(ctx context.Context) error {
	if s.config.ProcessingDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.config.ProcessingDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookupTranslation finds a translation in the dictionary or generates a default.
func (s *StubTranslator) lookupTranslation(text, targetLang string) string {
	if langDict, ok := s.config.Dictionary[targetLang]; ok {
		if translated, ok := langDict[text]; ok {
			return translated
		}
	}
	// Default: prefix with language code
	return "[" + targetLang + "] " + text
}

// TranslateCalls reports how many times Translate has been invoked. Used
// by tests to assert debounce/coalescing behavior without a mock.
func (s *StubTranslator) TranslateCalls() int64 {
	return s.translateCalls.Load()
}

// SupportedLanguages returns available language pairs.
func (s *StubTranslator) SupportedLanguages() []LanguagePair {
	return s.config.SupportedPairs
}

// Health returns the health status of the stub translator.
func (s *StubTranslator) Health() HealthStatus {
	return HealthStatus{
		Healthy: true,
		Message: "stub translator ready",
	}
}

var _ Translator = (*StubTranslator)(nil)
