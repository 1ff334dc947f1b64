package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the Dinory AI service.
type Config struct {
	// Server settings
	Port        string `envconfig:"API_PORT" default:"8000"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// OpenAI-compatible generation collaborator
	AIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	AIModel   string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIBaseURL string        `envconfig:"AI_BASE_URL" default:""`
	AITimeout time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`

	// Embedding model used for semantic memory and recommendations
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// Durable structured store (the Spring backend, read-only from here)
	BackendAPIURL     string        `envconfig:"SPRING_API_URL" default:"http://localhost:8090/api"`
	BackendAPITimeout time.Duration `envconfig:"SPRING_API_TIMEOUT" default:"10s"`

	// Vector index (Pinecone-style REST API). Semantic search is only
	// enabled when both the flag is set and the key is present.
	PineconeAPIKey    string        `envconfig:"PINECONE_API_KEY"`
	PineconeIndexHost string        `envconfig:"PINECONE_INDEX_HOST"`
	PineconeEnabled   bool          `envconfig:"PINECONE_ENABLED" default:"false"`
	PineconeTimeout   time.Duration `envconfig:"PINECONE_TIMEOUT" default:"10s"`

	// Session store: "memory" (default) or "redis"
	SessionStore  string        `envconfig:"SESSION_STORE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
}

// SemanticSearchEnabled reports whether the vector index can be used.
func (c *Config) SemanticSearchEnabled() bool {
	return c.PineconeEnabled && c.PineconeAPIKey != "" && c.PineconeIndexHost != ""
}

// GenerationEnabled reports whether the generation collaborator is
// configured. When false every component runs its deterministic path.
func (c *Config) GenerationEnabled() bool {
	return c.AIAPIKey != ""
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load dinory-ai configuration: %w", err)
	}

	log.Printf("Dinory AI configuration loaded:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  AI Model: %s (key %s, timeout %v)", cfg.AIModel, setOrUnset(cfg.AIAPIKey), cfg.AITimeout)
	log.Printf("  Embedding Model: %s", cfg.EmbeddingModel)
	log.Printf("  Backend API: %s (timeout %v)", cfg.BackendAPIURL, cfg.BackendAPITimeout)
	log.Printf("  Pinecone: enabled=%t host=%s key=%s", cfg.SemanticSearchEnabled(), cfg.PineconeIndexHost, setOrUnset(cfg.PineconeAPIKey))
	log.Printf("  Session store: %s (ttl %v)", cfg.SessionStore, cfg.SessionTTL)

	return &cfg, nil
}

func setOrUnset(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}
