// Package config loads ragmux's runtime configuration from the environment
// (optionally via a local .env file) with a small set of YAML overrides for
// values that are awkward to carry as a single env var.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP/WS listener.
type ServerConfig struct {
	Host string
	Port int
}

// PostgresConfig is the Session/Task/Memory store backend.
type PostgresConfig struct {
	DSN string
}

// RedisConfig backs the experience pattern cache. Optional: when DSN is
// empty, the pattern cache is skipped and every pattern lookup goes to
// Postgres.
type RedisConfig struct {
	DSN string
}

// QdrantConfig is the knowledge-base vector store backend.
type QdrantConfig struct {
	DSN               string
	DefaultDimensions int
	DefaultMetric     string
}

// ProviderConfig describes one LLM backend credential set.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// LLMConfig selects and configures the active provider.
type LLMConfig struct {
	Provider  string // "anthropic" | "openai" | "google"
	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	Google    ProviderConfig
}

// ObsConfig controls logging and OpenTelemetry export.
type ObsConfig struct {
	LogPath        string
	LogLevel       string
	LogPayloads    bool
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// AuthConfig holds the operator-provisioned credential pair. Empty values
// mean "guest-only" mode.
type AuthConfig struct {
	AdminUser       string
	AdminPassHash   string
	SessionTokenTTL int // minutes
}

// EmbeddingConfig points the rag_agent's embedder at an OpenAI-compatible
// embeddings endpoint. BaseURL/Path default to OpenAI's own API.
// ragmuxd only uses this endpoint when APIKey is set; with no key it uses
// the deterministic hash embedder instead.
type EmbeddingConfig struct {
	BaseURL   string
	Path      string
	Model     string
	APIKey    string
	APIHeader string // defaults to "Authorization" (sent as "Bearer <APIKey>")
	Dimensions int
	TimeoutSecs int
}

// AgentsConfig bounds agent concurrency and the manager's in-flight
// request queue depth.
type AgentsConfig struct {
	Concurrency int
	QueueDepth  int
}

// MemoryConfig sizes the in-process working memory and pattern cache.
type MemoryConfig struct {
	WorkingMemoryCapacity int
	PatternCacheTTLSecs   int
}

// DebugConfig bounds the debug trace ring buffer.
type DebugConfig struct {
	RingCapacity          int
	ContentTruncateBytes  int
	EventBusSubscriberCap int
}

// Config is the fully-resolved runtime configuration for one ragmuxd process.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Qdrant   QdrantConfig
	Embedding EmbeddingConfig
	LLM      LLMConfig
	Obs      ObsConfig
	Auth     AuthConfig
	Agents   AgentsConfig
	Memory   MemoryConfig
	Debug    DebugConfig

	// ConfigFile, if set via CONFIG_FILE, supplies YAML overrides applied
	// after env parsing for values better expressed as structured data.
	ConfigFile string
}

// yamlOverrides is the subset of Config expressible as YAML; only
// non-zero fields here override the env-derived Config.
type yamlOverrides struct {
	Qdrant struct {
		DefaultDimensions int    `yaml:"default_dimensions"`
		DefaultMetric     string `yaml:"default_metric"`
	} `yaml:"qdrant"`
	Agents struct {
		Concurrency int `yaml:"concurrency"`
		QueueDepth  int `yaml:"queue_depth"`
	} `yaml:"agents"`
}

// Load reads configuration from the environment (a .env file in the working
// directory is merged in first, without overriding already-set OS env vars)
// and applies defaults for anything left unset.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Host: firstNonEmpty(os.Getenv("HOST"), "0.0.0.0"),
			Port: intFromEnv("PORT", 8080),
		},
		Postgres: PostgresConfig{DSN: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Redis:    RedisConfig{DSN: strings.TrimSpace(os.Getenv("REDIS_URL"))},
		Qdrant: QdrantConfig{
			DSN:               strings.TrimSpace(os.Getenv("QDRANT_URL")),
			DefaultDimensions: intFromEnv("QDRANT_DEFAULT_DIMENSIONS", 1536),
			DefaultMetric:     firstNonEmpty(os.Getenv("QDRANT_DEFAULT_METRIC"), "cosine"),
		},
		LLM: LLMConfig{
			Provider: firstNonEmpty(os.Getenv("LLM_PROVIDER"), "openai"),
			Anthropic: ProviderConfig{
				APIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
				Model:   firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-sonnet-4-5"),
				BaseURL: strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
			},
			OpenAI: ProviderConfig{
				APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
				Model:   firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"),
				BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			},
			Google: ProviderConfig{
				APIKey:  strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
				Model:   firstNonEmpty(os.Getenv("GOOGLE_MODEL"), "gemini-2.0-flash"),
				BaseURL: strings.TrimSpace(os.Getenv("GOOGLE_BASE_URL")),
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL:     firstNonEmpty(os.Getenv("EMBEDDING_BASE_URL"), "https://api.openai.com"),
			Path:        firstNonEmpty(os.Getenv("EMBEDDING_PATH"), "/v1/embeddings"),
			Model:       firstNonEmpty(os.Getenv("EMBEDDING_MODEL"), "text-embedding-3-small"),
			APIKey:      strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")),
			APIHeader:   firstNonEmpty(os.Getenv("EMBEDDING_API_HEADER"), "Authorization"),
			Dimensions:  intFromEnv("EMBEDDING_DIMENSIONS", 1536),
			TimeoutSecs: intFromEnv("EMBEDDING_TIMEOUT_SECONDS", 30),
		},
		Obs: ObsConfig{
			LogPath:        strings.TrimSpace(os.Getenv("LOG_PATH")),
			LogLevel:       firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
			LogPayloads:    boolFromEnv("LOG_PAYLOADS", false),
			OTLP:           strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
			ServiceName:    firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "ragmux"),
			ServiceVersion: firstNonEmpty(os.Getenv("SERVICE_VERSION"), "dev"),
			Environment:    firstNonEmpty(os.Getenv("ENVIRONMENT"), "development"),
		},
		Auth: AuthConfig{
			AdminUser:       strings.TrimSpace(os.Getenv("ADMIN_USER")),
			AdminPassHash:   strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),
			SessionTokenTTL: intFromEnv("SESSION_TOKEN_TTL_MINUTES", 720),
		},
		Agents: AgentsConfig{
			Concurrency: intFromEnv("AGENT_CONCURRENCY", 5),
			QueueDepth:  intFromEnv("AGENT_QUEUE_DEPTH", 50),
		},
		Memory: MemoryConfig{
			WorkingMemoryCapacity: intFromEnv("WORKING_MEMORY_CAPACITY", 20),
			PatternCacheTTLSecs:   intFromEnv("PATTERN_CACHE_TTL_SECONDS", 300),
		},
		Debug: DebugConfig{
			RingCapacity:          intFromEnv("DEBUG_TRACE_RING_CAPACITY", 2000),
			ContentTruncateBytes:  intFromEnv("DEBUG_TRACE_TRUNCATE_BYTES", 2000),
			EventBusSubscriberCap: intFromEnv("EVENT_BUS_SUBSCRIBER_CAP", 64),
		},
		ConfigFile: strings.TrimSpace(os.Getenv("CONFIG_FILE")),
	}

	if cfg.ConfigFile != "" {
		if err := applyYAMLOverrides(&cfg, cfg.ConfigFile); err != nil {
			return cfg, fmt.Errorf("apply config file overrides: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyYAMLOverrides(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var ov yamlOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return err
	}
	if ov.Qdrant.DefaultDimensions > 0 {
		cfg.Qdrant.DefaultDimensions = ov.Qdrant.DefaultDimensions
	}
	if ov.Qdrant.DefaultMetric != "" {
		cfg.Qdrant.DefaultMetric = ov.Qdrant.DefaultMetric
	}
	if ov.Agents.Concurrency > 0 {
		cfg.Agents.Concurrency = ov.Agents.Concurrency
	}
	if ov.Agents.QueueDepth > 0 {
		cfg.Agents.QueueDepth = ov.Agents.QueueDepth
	}
	return nil
}

// Validate checks the minimal set of fields the server cannot start without.
func (c Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "google":
		if c.LLM.Google.APIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when LLM_PROVIDER=google")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
