package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Language identifies the processing language for a document or query.
type Language string

const (
	// LanguageJapanese selects the Japanese preprocessing and tokenization path.
	LanguageJapanese Language = "ja"
	// LanguageEnglish selects the English preprocessing and tokenization path.
	LanguageEnglish Language = "en"
)

// SupportedLanguages lists the languages the pipeline can process.
var SupportedLanguages = []Language{LanguageJapanese, LanguageEnglish}

// Supported reports whether l is one of the supported languages.
func (l Language) Supported() bool {
	for _, s := range SupportedLanguages {
		if l == s {
			return true
		}
	}
	return false
}

// ContentHash generates a deterministic 64-bit hash of text using BLAKE2b.
// Identical content always produces identical hashes. Used for document IDs
// derived from source file identifiers and for cache keys.
func ContentHash(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// DocumentIDFromSource derives a document ID from the originating file identifier.
func DocumentIDFromSource(fileID string) string {
	return fmt.Sprintf("doc-%016x", ContentHash(fileID))
}

// ChunkID builds the canonical chunk identifier for the index-th chunk of a document.
// The format "{documentID}_chunk_{index}" is a hard invariant: chunk IDs are globally
// unique and always traceable back to their owning document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// Chunk is a bounded slice of a document's text, the unit of embedding and retrieval.
// Chunks are never mutated in place: re-ingesting a document replaces its chunks.
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Category   string         `json:"category"`
	Content    string         `json:"content"`
	Language   Language       `json:"language"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// EmbeddingRecord stores the embedding vector for a chunk, length-compressed
// to control storage cost. Encoded holds the quantized, compressed, base64
// representation produced by vector.CompressAndEncode.
type EmbeddingRecord struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	Category     string    `json:"category"`
	Encoded      string    `json:"encoded"`
	Dim          int       `json:"dim"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document is an ingested source document. It owns 1..N chunks which are
// (re)computed from Content on every save.
type Document struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Category    string         `json:"category"`
	Language    Language       `json:"language"`
	Path        string         `json:"path,omitempty"`
	Format      string         `json:"format,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SearchResult is one ranked hit from a hybrid search. It is ephemeral:
// constructed per query and retained only in the cache.
type SearchResult struct {
	ChunkID         string         `json:"chunk_id"`
	DocumentID      string         `json:"document_id"`
	Category        string         `json:"category"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Score           float64        `json:"score"`
	SemanticScore   float64        `json:"semantic_score"`
	KeywordScore    float64        `json:"keyword_score"`
	MatchedKeywords []string       `json:"matched_keywords,omitempty"`
	Title           string         `json:"title,omitempty"`
	Path            string         `json:"path,omitempty"`
	Format          string         `json:"format,omitempty"`
	Language        Language       `json:"language,omitempty"`
	Snippet         string         `json:"snippet,omitempty"`
	RelevanceScore  float64        `json:"relevance_score"`
}

// ScoredChunk holds an intermediate per-shard hit before fusion and hydration.
type ScoredChunk struct {
	Chunk           *Chunk
	Score           float64
	MatchedKeywords []string
}

// ResponseType classifies response templates. The set is closed: selection
// heuristics dispatch on it at compile time.
type ResponseType int

const (
	ResponseStandard ResponseType = iota + 1
	ResponseEmail
	ResponsePrep
	ResponseDetailed
	ResponseNoResults
)

var responseTypeNames = map[ResponseType]string{
	ResponseStandard:  "standard",
	ResponseEmail:     "email",
	ResponsePrep:      "prep",
	ResponseDetailed:  "detailed",
	ResponseNoResults: "no_results",
}

// String returns the wire name of the response type.
func (rt ResponseType) String() string {
	if name, ok := responseTypeNames[rt]; ok {
		return name
	}
	return "standard"
}

// ParseResponseType maps a wire name to a ResponseType.
// Unknown names map to ResponseStandard.
func ParseResponseType(name string) ResponseType {
	for rt, n := range responseTypeNames {
		if n == name {
			return rt
		}
	}
	return ResponseStandard
}

// Template is a response template. Immutable once loaded; Content holds the
// small rendering DSL interpreted by synth/template.
type Template struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     ResponseType   `json:"type"`
	Content  string         `json:"content"`
	Language Language       `json:"language"`
	Category string         `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ShardKind distinguishes the two sharded table families.
type ShardKind int

const (
	ShardChunks ShardKind = iota + 1
	ShardEmbeddings
)

// String returns the wire name of the shard kind.
func (k ShardKind) String() string {
	if k == ShardEmbeddings {
		return "embeddings"
	}
	return "chunks"
}

// ShardInfo is one row of the index mapping recording a physical shard.
type ShardInfo struct {
	Category    string    `json:"category"`
	Kind        ShardKind `json:"kind"`
	Name        string    `json:"name"`
	RowCount    int       `json:"row_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// HelpPair links a bilingual pair of documents covering the same topic.
type HelpPair struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	JaDocumentID string    `json:"ja_document_id"`
	EnDocumentID string    `json:"en_document_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// LogRecord is one row of the persisted log ring buffer.
type LogRecord struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}
