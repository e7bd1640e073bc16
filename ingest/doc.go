// Package ingest turns source documents into searchable chunks.
//
// Processing a document is an upsert: the previous chunks and embeddings of
// the document are deleted before the new split is written, so repeated
// processing never accumulates duplicate rows. Embedding generation is
// rate-limited against the upstream model quota and can run either inline
// or deferred on a worker pool.
package ingest
