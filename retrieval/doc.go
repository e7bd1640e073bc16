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

// Package retrieval implements hybrid search over the chunk corpus.
//
// The Engine type runs a multi-stage pipeline per query:
//   - Cached-response check keyed by the normalized query and options
//   - Language resolution and per-language preprocessing
//   - Synonym-based query expansion
//   - Semantic (vector cosine) and keyword (substring scoring) retrieval,
//     run concurrently across the shard set, each degrading independently
//   - Weighted score fusion, ranking, and truncation
//   - Enrichment with owning-document metadata and keyword-aware snippets
//
// Scores from both retrieval methods are fused with normalized weights so
// a chunk found by only one method still ranks by that method's weighted
// contribution.
package retrieval
