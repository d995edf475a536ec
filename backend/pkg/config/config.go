package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

// Vector backends
const (
	VectorBackendQdrant   = "qdrant"
	VectorBackendPgVector = "pgvector"
	VectorBackendNone     = "none"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Vault
	VaultPath     string
	VaultID       string // optional override, derived from VaultPath when empty
	WatchMaxDepth int
	LedgerPath    string // defaults to <vault>/.vault-graph/sync.db

	// Neo4j
	Neo4jURI            string
	Neo4jUser           string
	Neo4jPassword       string
	Neo4jConnectTimeout time.Duration

	// Vector store
	VectorBackend string
	QdrantURL     string
	QdrantAPIKey  string
	PgVectorDSN   string

	// Embeddings (OpenAI-compatible endpoint, e.g. LiteLLM)
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingRateLimit float64 // requests per second

	// Update queue
	QueueMaxBatchSize     int
	QueueBatchInterval    time.Duration
	MetricsReportInterval time.Duration

	Relationships Relationships
}

// Relationships holds the relationship inference tunables.
// They can come from a YAML file (GRAPH_CONFIG_FILE) and are then overridden by env.
type Relationships struct {
	HighlyRelated           float64 `yaml:"highly_related"`
	RelatedTo               float64 `yaml:"related_to"`
	SameDomain              float64 `yaml:"same_domain"`
	CrossDomain             float64 `yaml:"cross_domain"`
	LooselyRelated          float64 `yaml:"loosely_related"`
	MinSimilarity           float64 `yaml:"min_similarity"`
	MinConfidence           float64 `yaml:"min_confidence"`
	MaxRelationshipsPerPair int     `yaml:"max_relationships_per_pair"`
	MaxTotalRelationships   int     `yaml:"max_total_relationships"`
}

type fileConfig struct {
	Relationships Relationships `yaml:"relationships"`
}

// DefaultRelationships returns the stock inference tunables
func DefaultRelationships() Relationships {
	return Relationships{
		HighlyRelated:           0.70,
		RelatedTo:               0.40,
		SameDomain:              0.50,
		CrossDomain:             0.60,
		LooselyRelated:          0.30,
		MinSimilarity:           0.30,
		MinConfidence:           0.30,
		MaxRelationshipsPerPair: 3,
		MaxTotalRelationships:   1000,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	rel, err := loadRelationships(getEnv("GRAPH_CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		VaultPath:             getEnv("VAULT_PATH", "."),
		VaultID:               getEnv("VAULT_ID", ""),
		WatchMaxDepth:         getEnvInt("WATCH_MAX_DEPTH", 10),
		LedgerPath:            getEnv("LEDGER_PATH", ""),
		Neo4jURI:              getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:             getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:         getEnv("NEO4J_PASSWORD", "password"),
		Neo4jConnectTimeout:   time.Duration(getEnvInt("NEO4J_CONNECT_TIMEOUT_SECS", 10)) * time.Second,
		VectorBackend:         getEnv("VECTOR_BACKEND", VectorBackendQdrant),
		QdrantURL:             getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:          getEnv("QDRANT_API_KEY", ""),
		PgVectorDSN:           getEnv("PGVECTOR_DSN", ""),
		EmbeddingBaseURL:      getEnv("EMBEDDING_BASE_URL", "http://localhost:4000"),
		EmbeddingAPIKey:       getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDimension:    getEnvInt("EMBEDDING_DIMENSION", 1536),
		EmbeddingRateLimit:    getEnvFloat("EMBEDDING_RATE_LIMIT", 5),
		QueueMaxBatchSize:     getEnvInt("QUEUE_MAX_BATCH_SIZE", 10),
		QueueBatchInterval:    time.Duration(getEnvInt("QUEUE_BATCH_INTERVAL_SECS", 30)) * time.Second,
		MetricsReportInterval: time.Duration(getEnvInt("METRICS_REPORT_INTERVAL_SECS", 60)) * time.Second,
		Relationships:         applyRelationshipEnv(rel),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadRelationships(path string) (Relationships, error) {
	rel := DefaultRelationships()
	if path == "" {
		return rel, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rel, nil
		}
		return rel, fmt.Errorf("read %s: %w", path, err)
	}
	fc := fileConfig{Relationships: rel}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return rel, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc.Relationships, nil
}

func applyRelationshipEnv(rel Relationships) Relationships {
	rel.HighlyRelated = getEnvFloat("GRAPH_THRESHOLD_HIGHLY_RELATED", rel.HighlyRelated)
	rel.RelatedTo = getEnvFloat("GRAPH_THRESHOLD_RELATED_TO", rel.RelatedTo)
	rel.SameDomain = getEnvFloat("GRAPH_THRESHOLD_SAME_DOMAIN", rel.SameDomain)
	rel.CrossDomain = getEnvFloat("GRAPH_THRESHOLD_CROSS_DOMAIN", rel.CrossDomain)
	rel.LooselyRelated = getEnvFloat("GRAPH_THRESHOLD_LOOSELY_RELATED", rel.LooselyRelated)
	rel.MinSimilarity = getEnvFloat("GRAPH_MIN_SIMILARITY_THRESHOLD", rel.MinSimilarity)
	rel.MinConfidence = getEnvFloat("GRAPH_MIN_CONFIDENCE_THRESHOLD", rel.MinConfidence)
	rel.MaxRelationshipsPerPair = getEnvInt("GRAPH_MAX_RELATIONSHIPS_PER_PAIR", rel.MaxRelationshipsPerPair)
	rel.MaxTotalRelationships = getEnvInt("GRAPH_MAX_TOTAL_RELATIONSHIPS", rel.MaxTotalRelationships)
	return rel
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	if c.VaultPath == "" {
		return apperrors.NewConfigMissingRequired("VAULT_PATH")
	}
	switch c.VectorBackend {
	case VectorBackendQdrant, VectorBackendNone:
	case VectorBackendPgVector:
		if c.PgVectorDSN == "" {
			return apperrors.NewConfigMissingRequired("PGVECTOR_DSN")
		}
	default:
		return apperrors.NewConfigValidationFailed("VECTOR_BACKEND", fmt.Sprintf("unknown backend %q", c.VectorBackend))
	}
	if c.QueueMaxBatchSize <= 0 {
		return apperrors.NewConfigValidationFailed("QUEUE_MAX_BATCH_SIZE", "must be positive")
	}
	if c.QueueBatchInterval <= 0 {
		return apperrors.NewConfigValidationFailed("QUEUE_BATCH_INTERVAL_SECS", "must be positive")
	}
	return c.Relationships.Validate()
}

// Validate checks thresholds are in [0,1] and caps are positive
func (r Relationships) Validate() error {
	thresholds := map[string]float64{
		"highly_related":  r.HighlyRelated,
		"related_to":      r.RelatedTo,
		"same_domain":     r.SameDomain,
		"cross_domain":    r.CrossDomain,
		"loosely_related": r.LooselyRelated,
		"min_similarity":  r.MinSimilarity,
		"min_confidence":  r.MinConfidence,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return apperrors.NewConfigValidationFailed(name, fmt.Sprintf("%v is outside [0,1]", v))
		}
	}
	if r.MaxRelationshipsPerPair <= 0 {
		return apperrors.NewConfigValidationFailed("max_relationships_per_pair", "must be positive")
	}
	if r.MaxTotalRelationships <= 0 {
		return apperrors.NewConfigValidationFailed("max_total_relationships", "must be positive")
	}
	return nil
}

// EmbeddingsEnabled reports whether an embedding model is configured
func (c *Config) EmbeddingsEnabled() bool {
	return c.EmbeddingModel != "" && c.VectorBackend != VectorBackendNone
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
