package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChunk() *Chunk {
	return &Chunk{
		ID:         ChunkID("doc-1", 0),
		DocumentID: "doc-1",
		Category:   "Billing",
		Content:    "How to change your budget",
		Language:   LanguageEnglish,
	}
}

func TestValidateChunk(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateChunk(validChunk()))
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunk(nil), ErrInvalidChunk)
	})

	t.Run("empty id", func(t *testing.T) {
		c := validChunk()
		c.ID = ""
		assert.ErrorIs(t, ValidateChunk(c), ErrEmptyID)
	})

	t.Run("id not derived from document", func(t *testing.T) {
		c := validChunk()
		c.ID = "other_chunk_0"
		assert.ErrorIs(t, ValidateChunk(c), ErrMalformedChunkID)
	})

	t.Run("empty content", func(t *testing.T) {
		c := validChunk()
		c.Content = ""
		assert.ErrorIs(t, ValidateChunk(c), ErrEmptyContent)
	})
}

func TestValidateDocument(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateDocument(&Document{ID: "doc-1", Content: "body"}))
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDocument(nil), ErrInvalidDocument)
	})

	t.Run("empty content", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDocument(&Document{ID: "doc-1"}), ErrEmptyContent)
	})
}

func TestValidateTemplate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateTemplate(&Template{ID: "tpl-1", Name: "standard ja", Content: "{query}"}))
	})

	t.Run("missing name", func(t *testing.T) {
		assert.ErrorIs(t, ValidateTemplate(&Template{ID: "tpl-1", Content: "{query}"}), ErrEmptyTemplateName)
	})

	t.Run("missing content", func(t *testing.T) {
		assert.ErrorIs(t, ValidateTemplate(&Template{ID: "tpl-1", Name: "n"}), ErrEmptyContent)
	})
}
