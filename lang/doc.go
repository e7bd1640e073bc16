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


// Package lang provides per-language text processing for the retrieval
// pipeline: language detection, normalization, tokenization, token-count
// estimation, and synonym-based query expansion.
//
// Japanese and English take different paths throughout. Japanese text is
// NFKC-normalized with width folding and segmented into character-class runs;
// English text is lowercased and whitespace-tokenized. Detection degrades
// gracefully: model-backed identification, then Unicode-range heuristics,
// then the configured default language.
package lang
