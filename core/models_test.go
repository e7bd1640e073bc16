package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, ContentHash("billing guide"), ContentHash("billing guide"))
	})

	t.Run("distinct inputs", func(t *testing.T) {
		assert.NotEqual(t, ContentHash("billing guide"), ContentHash("billing guide 2"))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, ContentHash(""), ContentHash(""))
	})
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1_chunk_0", ChunkID("doc-1", 0))
	assert.Equal(t, "doc-1_chunk_12", ChunkID("doc-1", 12))
}

func TestDocumentIDFromSource(t *testing.T) {
	id := DocumentIDFromSource("drive-file-123")
	assert.Contains(t, id, "doc-")
	assert.Equal(t, id, DocumentIDFromSource("drive-file-123"))
}

func TestLanguageSupported(t *testing.T) {
	assert.True(t, LanguageJapanese.Supported())
	assert.True(t, LanguageEnglish.Supported())
	assert.False(t, Language("fr").Supported())
	assert.False(t, Language("").Supported())
}

func TestResponseTypeRoundTrip(t *testing.T) {
	for _, rt := range []ResponseType{ResponseStandard, ResponseEmail, ResponsePrep, ResponseDetailed, ResponseNoResults} {
		assert.Equal(t, rt, ParseResponseType(rt.String()))
	}

	t.Run("unknown name falls back to standard", func(t *testing.T) {
		assert.Equal(t, ResponseStandard, ParseResponseType("haiku"))
	})
}
