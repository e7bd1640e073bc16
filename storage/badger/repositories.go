package badger

import (
	"errors"

	"github.com/kaiteki-lab/kotae/storage"
)

// Repositories bundles all kotae repositories over one BadgerDB backend.
type Repositories struct {
	Chunks    storage.ChunkRepository
	Documents storage.DocumentRepository
	Templates storage.TemplateRepository
	System    storage.SystemRepository

	backend *Backend
}

// NewRepositories opens a BadgerDB database at path and constructs every
// repository over it. maxRowsPerShard caps chunk shards; a non-positive
// value selects the default.
func NewRepositories(path string, maxRowsPerShard int) (*Repositories, error) {
	return newRepositories(path, false, maxRowsPerShard)
}

func newRepositories(path string, inMemory bool, maxRowsPerShard int) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	system, err := NewSystemRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Chunks:    NewChunkRepository(backend, maxRowsPerShard),
		Documents: NewDocumentRepository(backend),
		Templates: NewTemplateRepository(backend),
		System:    system,
		backend:   backend,
	}, nil
}

// Backend exposes the shared backend so cache stores can be built over the
// same database.
func (r *Repositories) Backend() *Backend {
	return r.backend
}

// Close closes every repository and the underlying backend.
func (r *Repositories) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{r.Chunks, r.Documents, r.Templates, r.System} {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
