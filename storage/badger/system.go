package badger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/storage"
)

// logRingCap bounds the persisted log ring.
const logRingCap = 1000

// SystemRepository implements storage.SystemRepository for BadgerDB.
type SystemRepository struct {
	backend *Backend
	logSeq  *badger.Sequence
}

var _ storage.SystemRepository = (*SystemRepository)(nil)

// NewSystemRepository creates a new SystemRepository.
func NewSystemRepository(backend *Backend) (*SystemRepository, error) {
	logSeq, err := backend.GetSequence(logRecordSeq)
	if err != nil {
		return nil, err
	}
	return &SystemRepository{
		backend: backend,
		logSeq:  logSeq,
	}, nil
}

// Close releases the log sequence.
func (r *SystemRepository) Close() error {
	return r.logSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *SystemRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutHelpPair inserts or replaces a bilingual document pair.
func (r *SystemRepository) PutHelpPair(ctx context.Context, pair *core.HelpPair) error {
	if pair.CreatedAt.IsZero() {
		pair.CreatedAt = time.Now().UTC()
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		value, err := storage.MarshalHelpPair(pair)
		if err != nil {
			return err
		}
		if err := tx.Set(makeHelpPairKey(pair.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListHelpPairs returns all help pairs ordered by ID.
func (r *SystemRepository) ListHelpPairs(ctx context.Context) ([]*core.HelpPair, error) {
	var results []*core.HelpPair
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(helpPairPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var pair *core.HelpPair
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				pair, err = storage.UnmarshalHelpPair(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, pair)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.HelpPair) int {
		return strings.Compare(a.ID, b.ID)
	})
	return results, nil
}

// AppendLog appends a row to the log ring, evicting the oldest rows once
// the ring exceeds its cap.
func (r *SystemRepository) AppendLog(ctx context.Context, rec *core.LogRecord) error {
	seq, err := r.logSeq.Next()
	if err != nil {
		return err
	}
	// Sequences can return 0 on first call.
	if seq == 0 {
		seq, err = r.logSeq.Next()
		if err != nil {
			return err
		}
	}
	rec.Seq = seq
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		value, err := storage.MarshalLogRecord(rec)
		if err != nil {
			return err
		}
		if err := tx.Set(makeLogRecordKey(seq), value); err != nil {
			return err
		}

		// Trim from the front while over capacity.
		prefix := []byte(logRecordPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		// The row written above is not visible to the iterator within the
		// same transaction on all badger versions, so count it explicitly.
		total := len(keys)
		if !slices.ContainsFunc(keys, func(k []byte) bool {
			return string(k) == string(makeLogRecordKey(seq))
		}) {
			total++
		}
		for i := 0; total > logRingCap && i < len(keys); i++ {
			if err := tx.Delete(keys[i]); err != nil {
				return err
			}
			total--
		}
		return tx.Commit()
	}, true)
}

// RecentLogs returns up to limit rows, newest first.
func (r *SystemRepository) RecentLogs(ctx context.Context, limit int) ([]*core.LogRecord, error) {
	if limit <= 0 {
		limit = logRingCap
	}
	var results []*core.LogRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(logRecordPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the highest possible sequence, then walk backwards.
		startKey := append([]byte{}, prefix...)
		startKey = append(startKey, 0xFF)

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
				break
			}
			var rec *core.LogRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalLogRecord(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, rec)
		}
		return nil
	}, false)
	return results, err
}
