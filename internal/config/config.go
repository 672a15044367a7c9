package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alecKarfonta/graphrag/internal/platform/envutil"
)

// Config is the process-level configuration; store and collaborator
// adapters read their own connection env vars. Env vars carry
// connection and tuning values; the YAML file carries vocabulary that must
// not be hard-coded (causal relation types, intent rule patterns).
type Config struct {
	LogMode  string
	HTTPAddr string

	DisableLLMFallback bool

	IngestChunkConcurrency  int
	IngestGlobalConcurrency int
	ExtractTimeout          time.Duration

	RetrieveGlobalTimeout   time.Duration
	RetrieveStrategyTimeout time.Duration
	RetrievalCacheTTL       time.Duration

	Vocabulary Vocabulary
}

// Vocabulary is the YAML-loaded portion of the configuration.
type Vocabulary struct {
	CausalRelationTypes []string        `yaml:"causal_relation_types"`
	IntentPatterns      []IntentPattern `yaml:"intent_patterns"`
}

// IntentPattern maps a regex to an intent with a rule confidence.
type IntentPattern struct {
	Intent     string  `yaml:"intent"`
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
}

func Load() (Config, error) {
	cfg := Config{
		LogMode:  envutil.Str("LOG_MODE", "development"),
		HTTPAddr: envutil.Str("HTTP_ADDR", ":8000"),

		DisableLLMFallback: envutil.Bool("DISABLE_LLM_FALLBACK", false),

		IngestChunkConcurrency:  envutil.Int("INGEST_CHUNK_CONCURRENCY", 8),
		IngestGlobalConcurrency: envutil.Int("INGEST_GLOBAL_CONCURRENCY", 32),
		ExtractTimeout:          envutil.DurationSeconds("EXTRACT_TIMEOUT_SECONDS", 30*time.Second),

		RetrieveGlobalTimeout:   envutil.DurationMillis("RETRIEVE_GLOBAL_TIMEOUT_MS", 3*time.Second),
		RetrieveStrategyTimeout: envutil.DurationMillis("RETRIEVE_STRATEGY_TIMEOUT_MS", 2*time.Second),
		RetrievalCacheTTL:       envutil.DurationSeconds("RETRIEVAL_CACHE_TTL_SECONDS", 60*time.Second),

		Vocabulary: DefaultVocabulary(),
	}

	if cfg.IngestChunkConcurrency < 1 {
		return cfg, fmt.Errorf("config: INGEST_CHUNK_CONCURRENCY must be >= 1")
	}
	if cfg.IngestGlobalConcurrency < 1 {
		return cfg, fmt.Errorf("config: INGEST_GLOBAL_CONCURRENCY must be >= 1")
	}

	path := strings.TrimSpace(os.Getenv("GRAPHRAG_CONFIG_PATH"))
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		var vocab Vocabulary
		if err := yaml.Unmarshal(raw, &vocab); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if len(vocab.CausalRelationTypes) > 0 {
			cfg.Vocabulary.CausalRelationTypes = vocab.CausalRelationTypes
		}
		if len(vocab.IntentPatterns) > 0 {
			cfg.Vocabulary.IntentPatterns = vocab.IntentPatterns
		}
	}
	return cfg, nil
}

// DefaultVocabulary covers deployments without a config file.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		CausalRelationTypes: []string{"causes", "caused_by", "leads_to", "results_in", "triggers", "prevents"},
		IntentPatterns: []IntentPattern{
			{Intent: "COMPARATIVE", Pattern: `(?i)\b(compare|comparison|versus|vs\.?|difference between|differ)\b`, Confidence: 0.9},
			{Intent: "CAUSAL", Pattern: `(?i)\b(why|cause[sd]?|because|reason|leads? to|results? in|effect of)\b`, Confidence: 0.85},
			{Intent: "PROCEDURAL", Pattern: `(?i)\b(how to|how do|how can|steps?|procedure|process to|instructions)\b`, Confidence: 0.85},
			{Intent: "TEMPORAL", Pattern: `(?i)\b(when|before|after|during|timeline|history of|first|latest)\b`, Confidence: 0.75},
			{Intent: "ANALYTICAL", Pattern: `(?i)\b(analy[sz]e|impact|implications?|relationship between|trend)\b`, Confidence: 0.75},
			{Intent: "FACTUAL", Pattern: `(?i)\b(what|who|where|which|define|definition|list)\b`, Confidence: 0.7},
		},
	}
}
