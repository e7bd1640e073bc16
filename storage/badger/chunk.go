package badger

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/storage"
	"github.com/kaiteki-lab/kotae/vector"
)

const defaultMaxRowsPerShard = 5000

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	maxRows int

	// Serializes shard creation and row-count maintenance. Badger
	// transactions alone cannot prevent two writers from both deciding
	// to roll over the same category's active shard.
	mu sync.Mutex
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
// maxRowsPerShard caps each shard; a non-positive value selects the default.
func NewChunkRepository(backend *Backend, maxRowsPerShard int) *ChunkRepository {
	if maxRowsPerShard <= 0 {
		maxRowsPerShard = defaultMaxRowsPerShard
	}
	return &ChunkRepository{
		backend: backend,
		maxRows: maxRowsPerShard,
	}
}

// Close releases repository resources.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks appends chunks to the active shard of their category, rolling
// over to a fresh shard pair once the row cap is reached.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Shards touched in this batch, keyed by name.
		touched := make(map[string]*core.ShardInfo)

		for _, chunk := range chunks {
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}

			now := time.Now().UTC()
			if chunk.CreatedAt.IsZero() {
				chunk.CreatedAt = now
			}
			chunk.UpdatedAt = now

			shard, err := r.activeShard(tx, touched, chunk.Category)
			if err != nil {
				return err
			}

			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkRowKey(shard.Name, chunk.ID), value); err != nil {
				return err
			}
			if err := tx.Set(makeChunkLocKey(chunk.ID), []byte(shard.Name)); err != nil {
				return err
			}
			if err := tx.Set(makeDocChunkKey(chunk.DocumentID, chunk.ID), []byte(shard.Name)); err != nil {
				return err
			}

			shard.RowCount++
			shard.LastUpdated = now
		}

		for _, shard := range touched {
			if err := writeShardInfo(tx, shard); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// AddEmbeddings stores embedding rows in the embedding shard paired with
// each chunk's shard.
func (r *ChunkRepository) AddEmbeddings(ctx context.Context, records ...*core.EmbeddingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		touched := make(map[string]*core.ShardInfo)

		for _, record := range records {
			chunkShard, err := readChunkLocation(tx, record.ChunkID)
			if err != nil {
				return err
			}
			embShard := pairedEmbeddingShard(chunkShard)

			info := touched[embShard]
			if info == nil {
				info, err = readShardInfo(tx, embShard)
				if err != nil {
					return err
				}
				touched[embShard] = info
			}

			if record.CreatedAt.IsZero() {
				record.CreatedAt = time.Now().UTC()
			}

			key := makeEmbeddingKey(embShard, record.ChunkID, record.ModelVersion)
			_, getErr := tx.Get(key)
			isNew := getErr == badger.ErrKeyNotFound
			if getErr != nil && !isNew {
				return getErr
			}

			value, err := storage.MarshalEmbeddingRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}

			if isNew {
				info.RowCount++
			}
			info.LastUpdated = time.Now().UTC()
		}

		for _, shard := range touched {
			if err := writeShardInfo(tx, shard); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocumentChunks removes all chunks and embeddings of a document.
func (r *ChunkRepository) DeleteDocumentChunks(ctx context.Context, documentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		type docChunk struct {
			chunkID string
			shard   string
		}
		var entries []docChunk

		prefix := makeDocChunkScanPrefix(documentID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			chunkID := string(item.Key()[len(prefix):])
			var shard string
			if err := item.Value(func(val []byte) error {
				shard = string(val)
				return nil
			}); err != nil {
				iter.Close()
				return err
			}
			entries = append(entries, docChunk{chunkID: chunkID, shard: shard})
		}
		iter.Close()

		touched := make(map[string]*core.ShardInfo)
		loadShard := func(name string) (*core.ShardInfo, error) {
			if info := touched[name]; info != nil {
				return info, nil
			}
			info, err := readShardInfo(tx, name)
			if err != nil {
				return nil, err
			}
			touched[name] = info
			return info, nil
		}

		for _, e := range entries {
			if err := tx.Delete(makeChunkRowKey(e.shard, e.chunkID)); err != nil {
				return err
			}
			if err := tx.Delete(makeChunkLocKey(e.chunkID)); err != nil {
				return err
			}
			if err := tx.Delete(makeDocChunkKey(documentID, e.chunkID)); err != nil {
				return err
			}

			chunkShard, err := loadShard(e.shard)
			if err != nil {
				return err
			}
			if chunkShard.RowCount > 0 {
				chunkShard.RowCount--
			}
			chunkShard.LastUpdated = time.Now().UTC()

			// Drop every embedding row of the chunk, any model version.
			embShardName := pairedEmbeddingShard(e.shard)
			embPrefix := makeEmbeddingScanPrefix(embShardName, e.chunkID)
			embOpts := badger.DefaultIteratorOptions
			embOpts.Prefix = embPrefix
			embOpts.PrefetchValues = false
			embIter := tx.NewIterator(embOpts)
			var embKeys [][]byte
			for embIter.Rewind(); embIter.Valid(); embIter.Next() {
				embKeys = append(embKeys, embIter.Item().KeyCopy(nil))
			}
			embIter.Close()

			if len(embKeys) > 0 {
				embShard, err := loadShard(embShardName)
				if err != nil {
					return err
				}
				for _, key := range embKeys {
					if err := tx.Delete(key); err != nil {
						return err
					}
					if embShard.RowCount > 0 {
						embShard.RowCount--
					}
				}
				embShard.LastUpdated = time.Now().UTC()
			}

			removed++
		}

		for _, shard := range touched {
			if err := writeShardInfo(tx, shard); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, err
	}
	return removed, nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, chunkID string) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		shard, err := readChunkLocation(tx, chunkID)
		if err != nil {
			return err
		}
		result, err = readChunkRow(tx, shard, chunkID)
		return err
	}, false)
	return result, err
}

// ListShards returns all shard index rows of the given kind, optionally
// filtered by category, ordered by shard name.
func (r *ChunkRepository) ListShards(ctx context.Context, category string, kind core.ShardKind) ([]core.ShardInfo, error) {
	var results []core.ShardInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(shardInfoPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var info *core.ShardInfo
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				info, err = storage.UnmarshalShardInfo(val)
				return err
			}); err != nil {
				return err
			}
			if info.Kind != kind {
				continue
			}
			if category != "" && info.Category != category {
				continue
			}
			results = append(results, *info)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.ShardInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return results, nil
}

// FindSimilarInShard linearly scans one chunk shard, scoring candidate rows
// by cosine similarity against queryVector.
func (r *ChunkRepository) FindSimilarInShard(ctx context.Context, shard core.ShardInfo, queryVector []float32, opts storage.ScanOptions) ([]*core.ScoredChunk, error) {
	if shard.Kind != core.ShardChunks {
		return nil, storage.ErrInvalidQuery
	}

	candidates, err := r.collectCandidates(shard.Name, opts)
	if err != nil {
		return nil, err
	}

	embShard := pairedEmbeddingShard(shard.Name)
	var results []*core.ScoredChunk

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range candidates {
			record, err := readEmbeddingRow(tx, embShard, chunk.ID, len(queryVector))
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			embedding, err := vector.DecodeAndDecompress(record.Encoded)
			if err != nil {
				// A corrupt row scores zero and drops out below.
				continue
			}
			score := vector.Cosine(queryVector, embedding)
			if score == 0 {
				continue
			}
			results = append(results, &core.ScoredChunk{Chunk: chunk, Score: score})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortScoredChunks(results)
	return results, nil
}

// FindKeywordMatchesInShard linearly scans one chunk shard for rows whose
// lowercased content contains any keyword, scoring matches with scorer.
func (r *ChunkRepository) FindKeywordMatchesInShard(ctx context.Context, shard core.ShardInfo, keywords []string, scorer storage.KeywordScorer, opts storage.ScanOptions) ([]*core.ScoredChunk, error) {
	if shard.Kind != core.ShardChunks {
		return nil, storage.ErrInvalidQuery
	}
	if len(keywords) == 0 || scorer == nil {
		return nil, nil
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	var results []*core.ScoredChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeChunkRowScanPrefix(shard.Name)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if opts.Limit > 0 && len(results) >= opts.Limit {
				break
			}

			var chunk *core.Chunk
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			}); err != nil {
				return err
			}
			if opts.Language != "" && chunk.Language != opts.Language {
				continue
			}

			content := strings.ToLower(chunk.Content)
			matched := false
			for _, kw := range lowered {
				if strings.Contains(content, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}

			score, matchedKeywords := scorer(chunk.Content, keywords)
			if score <= 0 {
				continue
			}
			results = append(results, &core.ScoredChunk{
				Chunk:           chunk,
				Score:           score,
				MatchedKeywords: matchedKeywords,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortScoredChunks(results)
	return results, nil
}

// LocateChunk resolves the shard holding a chunk.
func (r *ChunkRepository) LocateChunk(ctx context.Context, chunkID string) (core.ShardInfo, error) {
	var result core.ShardInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		shardName, err := readChunkLocation(tx, chunkID)
		if err != nil {
			if err == storage.ErrNotFound {
				return storage.ErrShardNotFound
			}
			return err
		}
		info, err := readShardInfo(tx, shardName)
		if err != nil {
			return err
		}
		result = *info
		return nil
	}, false)
	return result, err
}

// LocateDocument resolves every shard holding chunks of a document.
func (r *ChunkRepository) LocateDocument(ctx context.Context, documentID string) ([]core.ShardInfo, error) {
	var results []core.ShardInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		seen := make(map[string]bool)

		prefix := makeDocChunkScanPrefix(documentID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var shardName string
			if err := iter.Item().Value(func(val []byte) error {
				shardName = string(val)
				return nil
			}); err != nil {
				return err
			}
			if seen[shardName] {
				continue
			}
			seen[shardName] = true

			info, err := readShardInfo(tx, shardName)
			if err != nil {
				return err
			}
			results = append(results, *info)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.ShardInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return results, nil
}

// Helper methods

// collectCandidates gathers up to opts.Limit rows of a shard in insertion
// order, applying the optional language filter.
func (r *ChunkRepository) collectCandidates(shardName string, opts storage.ScanOptions) ([]*core.Chunk, error) {
	var candidates []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeChunkRowScanPrefix(shardName)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if opts.Limit > 0 && len(candidates) >= opts.Limit {
				break
			}
			var chunk *core.Chunk
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			}); err != nil {
				return err
			}
			if opts.Language != "" && chunk.Language != opts.Language {
				continue
			}
			candidates = append(candidates, chunk)
		}
		return nil
	}, false)
	return candidates, err
}

// activeShard returns the shard new chunks of a category should go to,
// creating the first shard or rolling over a full one as needed.
// New shards are created together with their paired embedding shard.
func (r *ChunkRepository) activeShard(tx *badger.Txn, touched map[string]*core.ShardInfo, category string) (*core.ShardInfo, error) {
	// Prefer a shard already touched in this batch.
	var best *core.ShardInfo
	bestOrdinal := 0
	for _, info := range touched {
		if info.Kind == core.ShardChunks && info.Category == category {
			if n := shardOrdinal(info.Name); n > bestOrdinal {
				best = info
				bestOrdinal = n
			}
		}
	}

	if best == nil {
		// Find the highest-ordinal existing shard for the category.
		prefix := []byte(shardInfoPrefix + ":Chunks_" + category + "_")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var info *core.ShardInfo
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				info, err = storage.UnmarshalShardInfo(val)
				return err
			}); err != nil {
				iter.Close()
				return nil, err
			}
			if info.Category != category || info.Kind != core.ShardChunks {
				continue
			}
			if n := shardOrdinal(info.Name); n > bestOrdinal {
				best = info
				bestOrdinal = n
			}
		}
		iter.Close()
	}

	if best != nil && best.RowCount < r.maxRows {
		touched[best.Name] = best
		return best, nil
	}

	// Roll over (or bootstrap) a new shard pair.
	next := bestOrdinal + 1
	now := time.Now().UTC()
	chunkShard := &core.ShardInfo{
		Category:    category,
		Kind:        core.ShardChunks,
		Name:        chunkShardName(category, next),
		LastUpdated: now,
	}
	embShard := &core.ShardInfo{
		Category:    category,
		Kind:        core.ShardEmbeddings,
		Name:        embeddingShardName(category, next),
		LastUpdated: now,
	}
	touched[chunkShard.Name] = chunkShard
	touched[embShard.Name] = embShard
	return chunkShard, nil
}

// shardOrdinal extracts the trailing ordinal of a shard name, 0 if malformed.
func shardOrdinal(name string) int {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return 0
	}
	n := 0
	for _, r := range name[idx+1:] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// sortScoredChunks orders hits by descending score, then ascending chunk ID
// so equal scores yield a stable presentation order.
func sortScoredChunks(results []*core.ScoredChunk) {
	slices.SortFunc(results, func(a, b *core.ScoredChunk) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.Chunk.ID, b.Chunk.ID)
	})
}

// readChunkLocation resolves a chunk ID to its shard name.
func readChunkLocation(tx *badger.Txn, chunkID string) (string, error) {
	item, err := tx.Get(makeChunkLocKey(chunkID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	var shard string
	err = item.Value(func(val []byte) error {
		shard = string(val)
		return nil
	})
	return shard, err
}

// readChunkRow reads a chunk row from a shard.
func readChunkRow(tx *badger.Txn, shardName, chunkID string) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkRowKey(shardName, chunkID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// readEmbeddingRow reads the embedding row for a chunk, preferring the one
// whose dimensionality matches wantDim. Returns nil when the chunk has no
// embedding yet.
func readEmbeddingRow(tx *badger.Txn, shardName, chunkID string, wantDim int) (*core.EmbeddingRecord, error) {
	prefix := makeEmbeddingScanPrefix(shardName, chunkID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var first *core.EmbeddingRecord
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var record *core.EmbeddingRecord
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalEmbeddingRecord(val)
			return err
		}); err != nil {
			return nil, err
		}
		if record.Dim == wantDim {
			return record, nil
		}
		if first == nil {
			first = record
		}
	}
	return first, nil
}

// readShardInfo reads a shard index row by name.
func readShardInfo(tx *badger.Txn, name string) (*core.ShardInfo, error) {
	item, err := tx.Get(makeShardInfoKey(name))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrShardNotFound
		}
		return nil, err
	}
	var info *core.ShardInfo
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		info, unmarshalErr = storage.UnmarshalShardInfo(val)
		return unmarshalErr
	})
	return info, err
}

// writeShardInfo persists a shard index row.
func writeShardInfo(tx *badger.Txn, info *core.ShardInfo) error {
	value, err := storage.MarshalShardInfo(info)
	if err != nil {
		return err
	}
	return tx.Set(makeShardInfoKey(info.Name), value)
}
