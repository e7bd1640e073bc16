package mock

import (
	"context"
	"errors"
)

// ErrIdentifierUnavailable is the default MockLanguageIdentifier failure.
// Callers are expected to fall back to heuristic detection, so a mock that
// fails by default exercises the common degraded path.
var ErrIdentifierUnavailable = errors.New("language identifier unavailable")

// MockLanguageIdentifier is a test double for ai.LanguageIdentifier.
type MockLanguageIdentifier struct {
	// IdentifyFunc is called by Identify if set.
	// If nil, Identify returns ErrIdentifierUnavailable.
	IdentifyFunc func(ctx context.Context, text string) (string, error)

	callCount int
}

// NewMockLanguageIdentifier creates a mock identifier that fails by default.
// Note: Returns concrete type to allow test assertions.
func NewMockLanguageIdentifier() *MockLanguageIdentifier {
	return &MockLanguageIdentifier{}
}

// Identify returns the injected function's output, or an error.
func (m *MockLanguageIdentifier) Identify(ctx context.Context, text string) (string, error) {
	m.callCount++

	if m.IdentifyFunc != nil {
		return m.IdentifyFunc(ctx, text)
	}
	return "", ErrIdentifierUnavailable
}

// CallCount returns the number of times Identify was called.
func (m *MockLanguageIdentifier) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected function.
func (m *MockLanguageIdentifier) Reset() {
	m.callCount = 0
	m.IdentifyFunc = nil
}
