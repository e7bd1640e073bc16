package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/tmc/langchaingo/llms"
)

const langIDPromptFmt = `Identify the language of the following text. ` +
	`Answer with only the two-letter ISO 639-1 code (for example "ja" or "en"), nothing else.

Text:
%s`

// LanguageIdentifier implements ai.LanguageIdentifier by asking the
// generation model for an ISO 639-1 code.
type LanguageIdentifier struct {
	client llms.Model
	logger *slog.Logger
}

// newLanguageIdentifier is an internal constructor that returns the concrete type.
func newLanguageIdentifier(gen *Generator) *LanguageIdentifier {
	return &LanguageIdentifier{
		client: gen.client,
		logger: slog.Default().With("component", "openai-langid"),
	}
}

// NewLanguageIdentifier creates a language identifier using the provided configuration.
//
// Returns ai.LanguageIdentifier interface to enforce abstraction.
func NewLanguageIdentifier(config *ai.Config) (ai.LanguageIdentifier, error) {
	gen, err := newGenerator(config)
	if err != nil {
		return nil, err
	}
	return newLanguageIdentifier(gen), nil
}

// Identify returns the ISO 639-1 code of the text's language.
func (l *LanguageIdentifier) Identify(ctx context.Context, text string) (string, error) {
	// Long samples do not improve identification; the first 200 runes are enough.
	runes := []rune(text)
	if len(runes) > 200 {
		text = string(runes[:200])
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, l.client,
		fmt.Sprintf(langIDPromptFmt, text), llms.WithTemperature(0.0))
	if err != nil {
		l.logger.Debug("language identification failed", "err", err)
		return "", err
	}

	code := strings.ToLower(strings.TrimSpace(out))
	if len(code) < 2 {
		return "", fmt.Errorf("malformed language code %q", out)
	}
	return code[:2], nil
}
