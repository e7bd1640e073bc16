package server

import "errors"

var (
	// ErrEngineRequired is returned when a server is constructed without a
	// retrieval engine.
	ErrEngineRequired = errors.New("retrieval engine is required")

	// ErrSynthesizerRequired is returned when a server is constructed
	// without a synthesizer.
	ErrSynthesizerRequired = errors.New("synthesizer is required")

	// ErrRepositoriesRequired is returned when a server is constructed
	// without its storage repositories.
	ErrRepositoriesRequired = errors.New("storage repositories are required")
)
