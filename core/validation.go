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

package core

import (
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - ID must not be empty and must encode the owning document
//   - Content must not be empty
//
// NOT validated (populated later in the pipeline):
//   - Metadata (optional)
//   - Language (defaulted by the ingestion pipeline)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyID)
	}

	if !strings.HasPrefix(chunk.ID, chunk.DocumentID+"_chunk_") {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMalformedChunkID)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	return nil
}

// ValidateDocument validates a Document according to domain rules.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}

	if doc.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	return nil
}

// ValidateTemplate validates a Template according to domain rules.
func ValidateTemplate(tpl *Template) error {
	if tpl == nil {
		return fmt.Errorf("%w: template is nil", ErrInvalidTemplate)
	}

	if tpl.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, ErrEmptyID)
	}

	if tpl.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, ErrEmptyTemplateName)
	}

	if tpl.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, ErrEmptyContent)
	}

	return nil
}
