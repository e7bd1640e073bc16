package lang

import (
	"context"
	"errors"
	"testing"

	"github.com/kaiteki-lab/kotae/ai/mock"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/stretchr/testify/assert"
)

func TestDetect_ServicePath(t *testing.T) {
	identifier := mock.NewMockLanguageIdentifier()
	identifier.IdentifyFunc = func(ctx context.Context, text string) (string, error) {
		return "en", nil
	}

	d := NewDetector(WithIdentifier(identifier))
	det := d.Detect(context.Background(), "how do I change my budget")

	assert.Equal(t, core.LanguageEnglish, det.Language)
	assert.Equal(t, ConfidenceService, det.Confidence)
	assert.Equal(t, 1, identifier.CallCount())
}

func TestDetect_ServiceReportsUnsupportedLanguage(t *testing.T) {
	identifier := mock.NewMockLanguageIdentifier()
	identifier.IdentifyFunc = func(ctx context.Context, text string) (string, error) {
		return "fr", nil
	}

	d := NewDetector(WithIdentifier(identifier), WithDefaultLanguage(core.LanguageJapanese))
	det := d.Detect(context.Background(), "bonjour")

	assert.Equal(t, core.LanguageJapanese, det.Language)
	assert.Equal(t, ConfidenceFallback, det.Confidence)
}

func TestDetect_HeuristicFallback(t *testing.T) {
	// Default mock identifier always fails, forcing the heuristic path.
	identifier := mock.NewMockLanguageIdentifier()

	d := NewDetector(WithIdentifier(identifier))

	t.Run("hiragana", func(t *testing.T) {
		det := d.Detect(context.Background(), "よくある質問")
		assert.Equal(t, core.LanguageJapanese, det.Language)
		assert.Equal(t, ConfidenceHeuristic, det.Confidence)
	})

	t.Run("katakana", func(t *testing.T) {
		det := d.Detect(context.Background(), "アカウント")
		assert.Equal(t, core.LanguageJapanese, det.Language)
		assert.Equal(t, ConfidenceHeuristic, det.Confidence)
	})

	t.Run("kanji only treated as japanese", func(t *testing.T) {
		det := d.Detect(context.Background(), "予算変更")
		assert.Equal(t, core.LanguageJapanese, det.Language)
		assert.Equal(t, ConfidenceHeuristic, det.Confidence)
	})

	t.Run("latin", func(t *testing.T) {
		det := d.Detect(context.Background(), "billing settings")
		assert.Equal(t, core.LanguageEnglish, det.Language)
		assert.Equal(t, ConfidenceHeuristic, det.Confidence)
	})

	t.Run("hangul substitutes default", func(t *testing.T) {
		det := d.Detect(context.Background(), "안녕하세요")
		assert.Equal(t, core.LanguageJapanese, det.Language)
		assert.Equal(t, ConfidenceFallback, det.Confidence)
	})
}

func TestDetect_NeverFails(t *testing.T) {
	identifier := mock.NewMockLanguageIdentifier()
	identifier.IdentifyFunc = func(ctx context.Context, text string) (string, error) {
		return "", errors.New("service exploded")
	}

	d := NewDetector(WithIdentifier(identifier), WithDefaultLanguage(core.LanguageEnglish))

	t.Run("empty text degrades to default", func(t *testing.T) {
		det := d.Detect(context.Background(), "")
		assert.Equal(t, core.LanguageEnglish, det.Language)
		assert.Equal(t, ConfidenceDefault, det.Confidence)
	})

	t.Run("undetectable text degrades to default", func(t *testing.T) {
		det := d.Detect(context.Background(), "12345 67890")
		assert.Equal(t, core.LanguageEnglish, det.Language)
		assert.Equal(t, ConfidenceDefault, det.Confidence)
	})
}

func TestDetect_NoIdentifierConfigured(t *testing.T) {
	d := NewDetector()
	det := d.Detect(context.Background(), "how to reset password")
	assert.Equal(t, core.LanguageEnglish, det.Language)
	assert.Equal(t, ConfidenceHeuristic, det.Confidence)
}
