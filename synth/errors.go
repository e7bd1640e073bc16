package synth

import "errors"

var (
	// ErrTemplateRepositoryRequired is returned when a synthesizer is
	// constructed without a template repository.
	ErrTemplateRepositoryRequired = errors.New("template repository is required")

	// ErrDocumentRepositoryRequired is returned when a synthesizer is
	// constructed without a document repository.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrInvalidSearchResults is returned when the search response handed to
	// GenerateResponse is missing or marked unsuccessful. This is the only
	// upfront failure; everything after validation degrades instead.
	ErrInvalidSearchResults = errors.New("invalid search results")
)
