package qdrant

import (
	"fmt"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/platform/envutil"
)

type Config struct {
	URL        string
	Collection string
	VectorDim  int
}

func ConfigFromEnv() Config {
	return Config{
		URL:        envutil.Str("QDRANT_URL", "http://localhost:6333"),
		Collection: envutil.Str("QDRANT_COLLECTION", "chunks"),
		VectorDim:  envutil.Int("EMBED_DIM", 1536),
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("qdrant: url required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return fmt.Errorf("qdrant: collection required")
	}
	if cfg.VectorDim <= 0 {
		return fmt.Errorf("qdrant: vector dim must be positive, got %d", cfg.VectorDim)
	}
	return nil
}
