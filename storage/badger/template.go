package badger

import (
	"context"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/storage"
)

// TemplateRepository implements storage.TemplateRepository for BadgerDB.
type TemplateRepository struct {
	backend *Backend
}

var _ storage.TemplateRepository = (*TemplateRepository)(nil)

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(backend *Backend) *TemplateRepository {
	return &TemplateRepository{backend: backend}
}

// Close releases repository resources.
func (r *TemplateRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *TemplateRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutTemplate inserts or replaces a template by ID.
func (r *TemplateRepository) PutTemplate(ctx context.Context, tpl *core.Template) error {
	if err := core.ValidateTemplate(tpl); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		value, err := storage.MarshalTemplate(tpl)
		if err != nil {
			return err
		}
		if err := tx.Set(makeTemplateKey(tpl.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetTemplate retrieves a single template by ID.
func (r *TemplateRepository) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	var result *core.Template
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTemplateKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalTemplate(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// ListTemplates returns all stored templates ordered by ID.
func (r *TemplateRepository) ListTemplates(ctx context.Context) ([]*core.Template, error) {
	var results []*core.Template
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(templatePrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var tpl *core.Template
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				tpl, err = storage.UnmarshalTemplate(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, tpl)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Template) int {
		return strings.Compare(a.ID, b.ID)
	})
	return results, nil
}
