package lang

import (
	"context"
	"log/slog"
	"unicode"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/core"
)

// Confidence levels reported by Detect, from most to least reliable source.
const (
	ConfidenceService   = 0.9
	ConfidenceHeuristic = 0.7
	ConfidenceFallback  = 0.5
	ConfidenceDefault   = 0.3
)

// Detection is the outcome of language detection.
type Detection struct {
	Language   core.Language
	Confidence float64
}

// Detector resolves the language of a text sample. It tries the model-backed
// identifier first and degrades to Unicode-range heuristics, then to the
// configured default. Detect never fails.
type Detector struct {
	identifier      ai.LanguageIdentifier
	defaultLanguage core.Language
	logger          *slog.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithIdentifier sets the model-backed language identification service.
// Without one, Detect goes straight to heuristics.
func WithIdentifier(identifier ai.LanguageIdentifier) DetectorOption {
	return func(d *Detector) {
		d.identifier = identifier
	}
}

// WithDefaultLanguage sets the language substituted when detection fails or
// yields an unsupported language. Default is Japanese.
func WithDefaultLanguage(language core.Language) DetectorOption {
	return func(d *Detector) {
		if language.Supported() {
			d.defaultLanguage = language
		}
	}
}

// WithDetectorLogger sets a custom logger. Default is slog.Default().
func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector creates a language detector.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		defaultLanguage: core.LanguageJapanese,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect resolves the language of text. It never returns an error: failures
// degrade to the default language with ConfidenceDefault.
func (d *Detector) Detect(ctx context.Context, text string) Detection {
	if text == "" {
		return Detection{Language: d.defaultLanguage, Confidence: ConfidenceDefault}
	}

	if d.identifier != nil {
		code, err := d.identifier.Identify(ctx, text)
		if err == nil {
			detected := core.Language(code)
			if detected.Supported() {
				return Detection{Language: detected, Confidence: ConfidenceService}
			}
			d.logger.Debug("identified language unsupported, substituting default",
				"detected", code, "default", d.defaultLanguage)
			return Detection{Language: d.defaultLanguage, Confidence: ConfidenceFallback}
		}
		d.logger.Debug("language identification service failed, using heuristics", "err", err)
	}

	if lang, ok := detectByRanges(text); ok {
		if lang.Supported() {
			return Detection{Language: lang, Confidence: ConfidenceHeuristic}
		}
		return Detection{Language: d.defaultLanguage, Confidence: ConfidenceFallback}
	}

	return Detection{Language: d.defaultLanguage, Confidence: ConfidenceDefault}
}

// detectByRanges classifies text by Unicode script ranges. The returned
// language may be unsupported (e.g. "ko", "zh"); the caller substitutes the
// default in that case.
func detectByRanges(text string) (core.Language, bool) {
	var kana, cjk, hangul, latin int

	for _, r := range text {
		switch {
		case r >= 0x3040 && r <= 0x309F: // hiragana
			kana++
		case r >= 0x30A0 && r <= 0x30FF: // katakana
			kana++
		case unicode.Is(unicode.Han, r):
			cjk++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case r < 128 && unicode.IsLetter(r):
			latin++
		}
	}

	switch {
	case kana > 0:
		return core.LanguageJapanese, true
	case hangul > 0:
		return core.Language("ko"), true
	case cjk > 0:
		// Kanji without kana is indistinguishable from Chinese here; the
		// corpus is ja/en so kanji-only text is treated as Japanese.
		return core.LanguageJapanese, true
	case latin > 0:
		return core.LanguageEnglish, true
	}

	return "", false
}
