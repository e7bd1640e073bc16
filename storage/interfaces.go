package storage

import (
	"context"

	"github.com/kaiteki-lab/kotae/core"
)

// ScanOptions bounds a per-shard linear scan.
type ScanOptions struct {
	// Language, when set, keeps only rows in that language.
	Language core.Language
	// Limit caps the number of candidate rows considered and returned.
	Limit int
}

// KeywordScorer scores a row's content against the query keywords, returning
// the score and the keywords that matched. A non-positive score means no
// match. The scoring formula lives with the retrieval engine; storage only
// applies it during the scan.
type KeywordScorer func(content string, keywords []string) (score float64, matched []string)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ChunkRepository provides operations for managing chunks, their embeddings,
// and the sharded tables that hold them.
type ChunkRepository interface {
	Repository
	// AddChunks appends chunks to the active shard for their category,
	// rolling over to a new shard when the row cap is reached.
	// Sets CreatedAt/UpdatedAt timestamps if not already set.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) error

	// AddEmbeddings stores embedding rows in the embedding shard paired with
	// each chunk's shard. A row for an existing (chunk, model) pair is
	// overwritten: one embedding per chunk per model version.
	AddEmbeddings(ctx context.Context, records ...*core.EmbeddingRecord) error

	// DeleteDocumentChunks removes all chunks and embeddings belonging to a
	// document, across every shard. Returns the number of chunks removed.
	// Re-ingestion replaces a document's chunks, never patches them.
	DeleteDocumentChunks(ctx context.Context, documentID string) (int, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, chunkID string) (*core.Chunk, error)

	// ListShards returns the index rows for all shards of the given kind,
	// optionally filtered by category. An empty category matches all.
	ListShards(ctx context.Context, category string, kind core.ShardKind) ([]core.ShardInfo, error)

	// FindSimilarInShard linearly scans one chunk shard: it collects up to
	// opts.Limit candidate rows (language-filtered if requested),
	// batch-fetches their embeddings, computes cosine similarity against
	// queryVector, drops zero scores, and returns the survivors sorted by
	// descending score.
	FindSimilarInShard(ctx context.Context, shard core.ShardInfo, queryVector []float32, opts ScanOptions) ([]*core.ScoredChunk, error)

	// FindKeywordMatchesInShard linearly scans one chunk shard for rows whose
	// lowercased content contains any keyword, scores them with scorer, and
	// returns up to opts.Limit results sorted by descending score.
	FindKeywordMatchesInShard(ctx context.Context, shard core.ShardInfo, keywords []string, scorer KeywordScorer, opts ScanOptions) ([]*core.ScoredChunk, error)

	// LocateChunk resolves the shard holding a chunk.
	// Returns ErrShardNotFound if no shard contains it.
	LocateChunk(ctx context.Context, chunkID string) (core.ShardInfo, error)

	// LocateDocument resolves every shard holding chunks of a document.
	LocateDocument(ctx context.Context, documentID string) ([]core.ShardInfo, error)
}

// DocumentRepository provides operations for managing documents.
type DocumentRepository interface {
	Repository
	// PutDocument inserts or replaces a document by ID.
	PutDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing ones).
	GetDocuments(ctx context.Context, ids ...string) ([]*core.Document, error)

	// DeleteDocument removes a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error

	// ListCategories returns the distinct categories across all documents.
	ListCategories(ctx context.Context) ([]string, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// TemplateRepository provides operations for managing response templates.
type TemplateRepository interface {
	Repository
	// PutTemplate inserts or replaces a template by ID.
	PutTemplate(ctx context.Context, tpl *core.Template) error

	// GetTemplate retrieves a single template by ID.
	// Returns ErrNotFound if the template doesn't exist.
	GetTemplate(ctx context.Context, id string) (*core.Template, error)

	// ListTemplates returns all stored templates.
	ListTemplates(ctx context.Context) ([]*core.Template, error)
}

// SystemRepository provides operations for ancillary system rows: bilingual
// help pairs and the persisted log ring.
type SystemRepository interface {
	Repository
	// PutHelpPair inserts or replaces a bilingual document pair.
	PutHelpPair(ctx context.Context, pair *core.HelpPair) error

	// ListHelpPairs returns all help pairs.
	ListHelpPairs(ctx context.Context) ([]*core.HelpPair, error)

	// AppendLog appends a row to the log ring, evicting the oldest row
	// once the ring is full.
	AppendLog(ctx context.Context, rec *core.LogRecord) error

	// RecentLogs returns up to limit rows, newest first.
	RecentLogs(ctx context.Context, limit int) ([]*core.LogRecord, error)
}
