package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configPathEnv names the variable holding an optional YAML config file.
const configPathEnv = "MARKET_RESEARCH_CONFIG"

type Config struct {
	GoogleApiKey    string `yaml:"googleApiKey"`
	AnthropicApiKey string `yaml:"anthropicApiKey"`
	DatabaseURL     string `yaml:"databaseUrl"`
	DBMaxConns      int    `yaml:"dbMaxConns"`

	// LLMBackend selects the reasoning client: googleai, anthropic, genai or ollama.
	LLMBackend     string `yaml:"llmBackend"`
	ReasoningModel string `yaml:"reasoningModel"`
	FastModel      string `yaml:"fastModel"`
	OllamaHost     string `yaml:"ollamaHost"`

	SearchBackends     []string `yaml:"searchBackends"`
	MaxResultsPerQuery int      `yaml:"maxResultsPerQuery"`
	MaxQueries         int      `yaml:"maxQueries"`

	StorageType   string        `yaml:"storageType"`
	ReportsDir    string        `yaml:"reportsDir"`
	S3Bucket      string        `yaml:"s3Bucket"`
	S3Prefix      string        `yaml:"s3Prefix"`
	S3Region      string        `yaml:"s3Region"`
	PresignExpiry time.Duration `yaml:"presignExpiry"`
	// PublicURL prefixes artifact links served by the HTTP server.
	PublicURL string `yaml:"publicUrl"`

	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	EmbeddingModel     string `yaml:"embeddingModel"`
	FindingsCollection string `yaml:"findingsCollection"`
	ChunkSize          int    `yaml:"chunkSize"`
	ChunkOverlap       int    `yaml:"chunkOverlap"`
}

func defaultConfig() *Config {
	return &Config{
		DBMaxConns:         10,
		LLMBackend:         "googleai",
		ReasoningModel:     "gemini-3-pro-preview",
		FastModel:          "gemini-3-flash-preview",
		OllamaHost:         "http://localhost:11434",
		SearchBackends:     []string{"web"},
		MaxResultsPerQuery: 4,
		MaxQueries:         5,
		StorageType:        "local",
		ReportsDir:         "reports",
		S3Prefix:           "reports/",
		PresignExpiry:      time.Hour,
		Port:               "8081",
		LogLevel:           "info",
		EmbeddingModel:     "gemini-embedding-001",
		FindingsCollection: "research_findings",
		ChunkSize:          1000,
		ChunkOverlap:       200,
	}
}

// Load reads .env (if present), then the YAML file named by
// MARKET_RESEARCH_CONFIG (if set), then the environment. Later sources win.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := defaultConfig()
	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			slog.Warn("Ignoring config file", "path", path, "error", err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshalling over the defaults keeps every field the file omits.
	return yaml.Unmarshal(raw, c)
}

func (c *Config) applyEnv() {
	c.GoogleApiKey = getEnv("GOOGLE_API_KEY", c.GoogleApiKey)
	c.AnthropicApiKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicApiKey)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DBMaxConns = getEnvAsInt("DB_MAX_CONNS", c.DBMaxConns)
	c.LLMBackend = strings.ToLower(getEnv("LLM_BACKEND", c.LLMBackend))
	c.ReasoningModel = getEnv("REASONING_MODEL", c.ReasoningModel)
	c.FastModel = getEnv("FAST_MODEL", c.FastModel)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.SearchBackends = getEnvAsList("SEARCH_BACKENDS", c.SearchBackends)
	c.MaxResultsPerQuery = getEnvAsInt("MAX_RESULTS_PER_QUERY", c.MaxResultsPerQuery)
	c.MaxQueries = getEnvAsInt("MAX_QUERIES", c.MaxQueries)
	c.StorageType = strings.ToLower(getEnv("STORAGE_TYPE", c.StorageType))
	c.ReportsDir = getEnv("REPORTS_DIR", c.ReportsDir)
	c.S3Bucket = getEnv("S3_BUCKET_NAME", c.S3Bucket)
	c.S3Prefix = getEnv("S3_PREFIX", c.S3Prefix)
	c.S3Region = getEnv("AWS_REGION", c.S3Region)
	c.PresignExpiry = getEnvAsDuration("PRESIGN_EXPIRY", c.PresignExpiry)
	c.PublicURL = getEnv("PUBLIC_URL", c.PublicURL)
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.FindingsCollection = getEnv("FINDINGS_COLLECTION", c.FindingsCollection)
	c.ChunkSize = getEnvAsInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", c.ChunkOverlap)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90m") or plain seconds ("3600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
