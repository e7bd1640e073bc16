// Copyright 2025 Kaiteki Lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/lang"
	"github.com/kaiteki-lab/kotae/storage"
	"github.com/kaiteki-lab/kotae/vector"
)

// defaultEmbedRate caps embedding calls against the upstream model quota.
// The serialization is deliberate: bulk ingestion must not starve
// interactive search of quota.
const defaultEmbedRate = rate.Limit(5)

// Invalidator removes cached entries for a document after reprocessing.
// retrieval.Engine satisfies it.
type Invalidator interface {
	InvalidateDocument(ctx context.Context, documentID string)
}

// Result reports what one ProcessDocument call wrote. Embedding counts are
// zero when embedding was deferred to the worker pool.
type Result struct {
	DocumentID    string `json:"document_id"`
	ChunkCount    int    `json:"chunk_count"`
	ReplacedCount int    `json:"replaced_count"`
	EmbeddedCount int    `json:"embedded_count"`
	FailedCount   int    `json:"failed_count"`
	Deferred      bool   `json:"deferred"`
}

// ProcessOptions controls one ProcessDocument call.
type ProcessOptions struct {
	// GenerateEmbeddings also embeds the new chunks.
	GenerateEmbeddings bool
	// Deferred runs embedding generation on the worker pool instead of
	// inline. Failures are then logged rather than reported.
	Deferred bool
}

// Pipeline ingests documents: upsert the document row, replace its chunks,
// and (optionally) embed them.
type Pipeline struct {
	chunks    storage.ChunkRepository
	documents storage.DocumentRepository
	embedder  ai.Embedder
	detector  *lang.Detector

	chunker     *Chunker
	pool        *ants.Pool
	limiter     *rate.Limiter
	invalidator Invalidator
	logger      *slog.Logger

	pending sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the deferred-embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithEmbedRate overrides the embedding-call rate limit (calls per second).
func WithEmbedRate(callsPerSecond float64) Option {
	return func(p *Pipeline) error {
		if callsPerSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), 1)
		}
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *Chunker) Option {
	return func(p *Pipeline) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithInvalidator wires cache invalidation for reprocessed documents.
func WithInvalidator(invalidator Invalidator) Option {
	return func(p *Pipeline) error {
		p.invalidator = invalidator
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	chunks storage.ChunkRepository,
	documents storage.DocumentRepository,
	provider ai.Provider,
	opts ...Option,
) (*Pipeline, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunks:    chunks,
		documents: documents,
		embedder:  provider.Embedder(),
		detector:  lang.NewDetector(lang.WithIdentifier(provider.LanguageIdentifier())),
		chunker:   NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		pool:      pool,
		limiter:   rate.NewLimiter(defaultEmbedRate, 1),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// ProcessDocument upserts a document and replaces its chunks. Language is
// detected from content when unset. There is no transactional guarantee
// across the document row and its chunk rows; a failure mid-way leaves the
// document row written and is reported to the caller.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc *core.Document, opts ProcessOptions) (*Result, error) {
	if doc != nil && doc.ID == "" && doc.Path != "" {
		doc.ID = core.DocumentIDFromSource(doc.Path)
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if !doc.Language.Supported() {
		doc.Language = p.detector.Detect(ctx, doc.Content).Language
	}

	if err := p.documents.PutDocument(ctx, doc); err != nil {
		return nil, err
	}

	// Upsert policy: the previous split is removed before the new one is
	// written, so reprocessing never accumulates duplicate rows.
	replaced, err := p.chunks.DeleteDocumentChunks(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(doc)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	if err := p.chunks.AddChunks(ctx, chunks...); err != nil {
		return nil, err
	}

	if p.invalidator != nil {
		p.invalidator.InvalidateDocument(ctx, doc.ID)
	}

	result := &Result{
		DocumentID:    doc.ID,
		ChunkCount:    len(chunks),
		ReplacedCount: replaced,
	}

	if !opts.GenerateEmbeddings {
		return result, nil
	}

	if opts.Deferred {
		result.Deferred = true
		p.pending.Add(1)
		submitErr := p.pool.Submit(func() {
			defer p.pending.Done()
			embedded, failed := p.embedChunks(context.Background(), chunks)
			if failed > 0 {
				p.logger.Warn("deferred embedding finished with failures",
					"document_id", doc.ID, "embedded", embedded, "failed", failed)
			}
		})
		if submitErr != nil {
			p.pending.Done()
			result.Deferred = false
			p.logger.Warn("deferred embedding submit failed, embedding inline",
				"document_id", doc.ID, "error", submitErr)
			result.EmbeddedCount, result.FailedCount = p.embedChunks(ctx, chunks)
		}
		return result, nil
	}

	result.EmbeddedCount, result.FailedCount = p.embedChunks(ctx, chunks)
	return result, nil
}

// embedChunks embeds chunks one at a time under the rate limit and stores
// each embedding as it is produced. Per-chunk failures are logged and
// counted; the remaining chunks still proceed.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) (embedded, failed int) {
	for _, chunk := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Warn("embedding aborted", "chunk_id", chunk.ID, "error", err)
			failed += len(chunks) - embedded - failed
			return embedded, failed
		}

		v, err := p.embedder.EmbedText(ctx, chunk.Content)
		if err != nil {
			p.logger.Warn("embedding chunk failed", "chunk_id", chunk.ID, "error", err)
			failed++
			continue
		}

		record := &core.EmbeddingRecord{
			ChunkID:      chunk.ID,
			DocumentID:   chunk.DocumentID,
			Category:     chunk.Category,
			Encoded:      vector.CompressAndEncode(v),
			Dim:          len(v),
			ModelVersion: p.embedder.ModelVersion(),
			CreatedAt:    time.Now().UTC(),
		}
		if err := p.chunks.AddEmbeddings(ctx, record); err != nil {
			p.logger.Warn("storing embedding failed", "chunk_id", chunk.ID, "error", err)
			failed++
			continue
		}
		embedded++
	}
	return embedded, failed
}

// Wait blocks until all deferred embedding tasks finish.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Release stops the worker pool after draining deferred tasks.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.pending.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
