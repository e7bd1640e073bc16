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
	"strings"
	"time"

	"github.com/kaiteki-lab/kotae/core"
)

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is how many runes consecutive chunks share.
	DefaultChunkOverlap = 100

	// breakSearchWindow is how far back from the cut point the chunker
	// looks for a natural boundary.
	breakSearchWindow = 200
)

// Chunker splits document content into bounded, overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive size or overlap fall back to
// the defaults; overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks a document's content. Chunk IDs follow the canonical
// "{documentID}_chunk_{index}" form; boundaries prefer sentence or line
// breaks near the size limit so chunks do not cut through sentences.
func (c *Chunker) Split(doc *core.Document) []*core.Chunk {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	runes := []rune(content)
	now := time.Now().UTC()
	var chunks []*core.Chunk

	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := breakPoint(runes, start, end); cut > start {
			end = cut
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			chunks = append(chunks, &core.Chunk{
				ID:         core.ChunkID(doc.ID, len(chunks)),
				DocumentID: doc.ID,
				Category:   doc.Category,
				Content:    text,
				Language:   doc.Language,
				Metadata:   chunkMetadata(doc),
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			// A short boundary chunk must still advance the cursor.
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint finds the last sentence or line break within the search
// window before end. Returns end when no boundary is found.
func breakPoint(runes []rune, start, end int) int {
	floor := end - breakSearchWindow
	if floor < start {
		floor = start
	}
	for i := end - 1; i >= floor; i-- {
		switch runes[i] {
		case '\n', '。', '．', '.', '!', '！', '?', '？':
			return i + 1
		}
	}
	return end
}

// chunkMetadata copies the document fields chunk rows carry for filtering
// and enrichment without a document lookup.
func chunkMetadata(doc *core.Document) map[string]any {
	md := map[string]any{
		"title": doc.Title,
	}
	if doc.Path != "" {
		md["path"] = doc.Path
	}
	if doc.Format != "" {
		md["format"] = doc.Format
	}
	return md
}
