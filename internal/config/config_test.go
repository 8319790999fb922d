package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEmbeddingDefaultsAgree(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("EMBEDDINGS_MODEL", "")
	t.Setenv("EMBEDDING_DIM", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// text-embedding-004 produces 768-dimension vectors; the default
	// collection size has to match or ingestion fails on every upsert
	assert.Equal(t, "text-embedding-004", cfg.EmbeddingsModel)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
}

func TestLoadConfigRejectsOversizedOverlap(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
