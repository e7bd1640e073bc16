package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelVersion returns the identifier of the embedding model in use.
	// Embedding rows record it so stale vectors can be detected after a
	// model change.
	ModelVersion() string
}

// Generator produces natural-language text from a prompt. It backs the
// response-enhancement and translation steps of the synthesizer.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's completion for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LanguageIdentifier identifies the language of a text sample.
// Implementations must be thread-safe for concurrent use.
type LanguageIdentifier interface {
	// Identify returns an ISO 639-1 language code (e.g. "ja", "en") for the
	// given text. Returns an error if identification fails; callers are
	// expected to degrade to heuristics.
	Identify(ctx context.Context, text string) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages the Embedder, Generator and
// LanguageIdentifier instances, ensuring they share configuration and
// resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the text generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// LanguageIdentifier returns the language identification service.
	// The returned LanguageIdentifier is safe for concurrent use.
	LanguageIdentifier() LanguageIdentifier

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
