package badger

import (
	"fmt"
	"strings"
)

// Key prefixes for different data types
const (
	shardInfoPrefix    = "shard"
	chunkRowPrefix     = "chunk"
	chunkLocPrefix     = "chunkloc"
	docChunkPrefix     = "docchunk"
	embeddingPrefix    = "embed"
	documentPrefix     = "docrec"
	templatePrefix     = "tplrec"
	helpPairPrefix     = "helprec"
	logRecordPrefix    = "logrec"
	logRecordSeq       = "logrecseq"
	sharedCachePrefix  = "cshared"
	durableCachePrefix = "cdurable"
)

// makeShardInfoKey generates a key for a shard index row by shard name.
func makeShardInfoKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", shardInfoPrefix, name))
}

// makeChunkRowKey generates a key for a chunk row within a shard.
// Format: prefix:shardName:chunkID
func makeChunkRowKey(shardName, chunkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", chunkRowPrefix, shardName, chunkID))
}

// makeChunkRowScanPrefix generates the iteration prefix for one shard's chunk rows.
func makeChunkRowScanPrefix(shardName string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkRowPrefix, shardName))
}

// makeChunkLocKey generates a key for the chunk location index.
// The value is the name of the shard holding the chunk.
func makeChunkLocKey(chunkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", chunkLocPrefix, chunkID))
}

// makeDocChunkKey generates a composite key for the document index.
// Format: prefix:documentID:chunkID, value is the shard name.
func makeDocChunkKey(documentID, chunkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", docChunkPrefix, documentID, chunkID))
}

// makeDocChunkScanPrefix generates the iteration prefix for one document's chunks.
func makeDocChunkScanPrefix(documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", docChunkPrefix, documentID))
}

// makeEmbeddingKey generates a key for an embedding row.
// Format: prefix:shardName:chunkID:modelVersion, so re-embedding with a new
// model version keeps the old row until its chunk is deleted.
func makeEmbeddingKey(shardName, chunkID, modelVersion string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", embeddingPrefix, shardName, chunkID, modelVersion))
}

// makeEmbeddingScanPrefix generates the iteration prefix for one chunk's embeddings.
func makeEmbeddingScanPrefix(shardName, chunkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", embeddingPrefix, shardName, chunkID))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

// makeTemplateKey generates a key for a template by ID.
func makeTemplateKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", templatePrefix, id))
}

// makeHelpPairKey generates a key for a help pair by ID.
func makeHelpPairKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", helpPairPrefix, id))
}

// makeLogRecordKey generates a key for a log ring row. Sequence numbers are
// zero-padded so lexicographic iteration follows insertion order.
func makeLogRecordKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s:%020d", logRecordPrefix, seq))
}

// chunkShardName builds the physical name of the n-th chunk shard of a category.
func chunkShardName(category string, n int) string {
	return fmt.Sprintf("Chunks_%s_%d", category, n)
}

// embeddingShardName builds the physical name of the n-th embedding shard of a category.
func embeddingShardName(category string, n int) string {
	return fmt.Sprintf("Embeddings_%s_%d", category, n)
}

// pairedEmbeddingShard maps a chunk shard name to its paired embedding shard name.
func pairedEmbeddingShard(chunkShard string) string {
	return "Embeddings_" + strings.TrimPrefix(chunkShard, "Chunks_")
}
