package ingest

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a pipeline is constructed
	// without a chunk repository.
	ErrChunkRepositoryRequired = errors.New("chunk repository is required")

	// ErrDocumentRepositoryRequired is returned when a pipeline is
	// constructed without a document repository.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrAIProviderRequired is returned when a pipeline is constructed
	// without an AI provider.
	ErrAIProviderRequired = errors.New("AI provider is required")

	// ErrEmptyDocument is returned when a document has no content to chunk.
	ErrEmptyDocument = errors.New("document content is empty")
)
