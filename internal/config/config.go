package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Search   Search   `mapstructure:"search"`
	LLM      LLM      `mapstructure:"llm"`
	Store    Store    `mapstructure:"store"`
	News     News     `mapstructure:"news"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Search holds upstream news-search configuration
type Search struct {
	APIKey     string `mapstructure:"api_key"`
	Engine     string `mapstructure:"engine"`
	MaxResults int    `mapstructure:"max_results"`
	Timeout    string `mapstructure:"timeout"`
	Language   string `mapstructure:"language"`
	Country    string `mapstructure:"country"`
}

// LLM holds language-model configuration
type LLM struct {
	Chat      ChatConfig      `mapstructure:"chat"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// ChatConfig holds the chat-completion endpoint configuration.
// BaseURL points at any OpenAI-compatible endpoint.
type ChatConfig struct {
	Key         string  `mapstructure:"key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     string  `mapstructure:"timeout"`
}

// EmbeddingConfig holds the embedding endpoint configuration
type EmbeddingConfig struct {
	Model        string `mapstructure:"model"`
	Dimension    int    `mapstructure:"dimension"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	BatchSize    int    `mapstructure:"batch_size"`
}

// Store holds datastore configuration
type Store struct {
	DBPath     string `mapstructure:"db_path"`
	DBName     string `mapstructure:"db_name"`
	VectorPath string `mapstructure:"vector_path"`
}

// News holds ingestion configuration
type News struct {
	DefaultExpireDays int `mapstructure:"default_expire_days"`
}

// Pipeline holds coordinator configuration
type Pipeline struct {
	BatchMaxConcurrent    int `mapstructure:"batch_max_concurrent"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file, and environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsmosaic")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.name", "newsmosaic")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	viper.SetDefault("search.engine", "google")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("search.language", "zh-cn")
	viper.SetDefault("search.country", "cn")

	viper.SetDefault("llm.chat.model", "qwen-turbo")
	viper.SetDefault("llm.chat.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	viper.SetDefault("llm.chat.temperature", 0.7)
	viper.SetDefault("llm.chat.max_tokens", 1000)
	viper.SetDefault("llm.chat.timeout", "60s")

	viper.SetDefault("llm.embedding.model", "text-embedding-v3")
	viper.SetDefault("llm.embedding.dimension", 1536)
	viper.SetDefault("llm.embedding.chunk_size", 512)
	viper.SetDefault("llm.embedding.chunk_overlap", 100)
	viper.SetDefault("llm.embedding.batch_size", 10)

	viper.SetDefault("store.db_path", "news_mosaic.db")
	viper.SetDefault("store.db_name", "news_mosaic")
	viper.SetDefault("store.vector_path", "news_vectors.db")

	viper.SetDefault("news.default_expire_days", 3)

	viper.SetDefault("pipeline.batch_max_concurrent", 5)
	viper.SetDefault("pipeline.request_timeout_seconds", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("search.api_key", []string{
		"SEARCH_API_KEY",
		"SERPAPI_KEY",
		"SERPAPI_API_KEY",
	})

	bindEnvKeys("llm.chat.key", []string{
		"LM_CHAT_KEY",
		"QWEN_API_KEY",
	})
	bindEnvKeys("llm.chat.model", []string{"LM_CHAT_MODEL"})
	bindEnvKeys("llm.chat.base_url", []string{"LM_CHAT_BASE_URL"})

	bindEnvKeys("llm.embedding.model", []string{"LM_EMBED_MODEL"})
	bindEnvKeys("llm.embedding.dimension", []string{"LM_EMBED_DIMENSION"})
	bindEnvKeys("llm.embedding.chunk_size", []string{"EMBEDDING_CHUNK_SIZE"})
	bindEnvKeys("llm.embedding.chunk_overlap", []string{"EMBEDDING_CHUNK_OVERLAP"})
	bindEnvKeys("llm.embedding.batch_size", []string{"EMBEDDING_BATCH_SIZE"})

	bindEnvKeys("store.db_path", []string{"DB_URL"})
	bindEnvKeys("store.db_name", []string{"DB_NAME"})

	bindEnvKeys("news.default_expire_days", []string{"NEWS_DEFAULT_EXPIRE_DAYS"})

	bindEnvKeys("pipeline.batch_max_concurrent", []string{"PIPELINE_BATCH_MAX_CONCURRENT"})
	bindEnvKeys("pipeline.request_timeout_seconds", []string{"PIPELINE_REQUEST_TIMEOUT_SECONDS"})

	bindEnvKeys("app.debug", []string{"DEBUG"})
	bindEnvKeys("logging.level", []string{"LOG_LEVEL"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// validateConfig ensures configuration values are coherent. Missing API
// keys are not fatal here; the owning component degrades per its contract.
func validateConfig(config *Config) error {
	var errors []string

	if config.LLM.Embedding.ChunkSize <= 0 {
		errors = append(errors, "llm.embedding.chunk_size must be positive")
	}
	if config.LLM.Embedding.ChunkOverlap < 0 ||
		config.LLM.Embedding.ChunkOverlap >= config.LLM.Embedding.ChunkSize {
		errors = append(errors, "llm.embedding.chunk_overlap must be non-negative and smaller than chunk_size")
	}
	if config.LLM.Embedding.BatchSize <= 0 {
		errors = append(errors, "llm.embedding.batch_size must be positive")
	}
	if config.News.DefaultExpireDays <= 0 {
		errors = append(errors, "news.default_expire_days must be positive")
	}
	if config.Pipeline.BatchMaxConcurrent <= 0 {
		errors = append(errors, "pipeline.batch_max_concurrent must be positive")
	}
	if config.Pipeline.BatchMaxConcurrent > 10 {
		config.Pipeline.BatchMaxConcurrent = 10
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Convenience getters for commonly used configuration values
func GetApp() App           { return Get().App }
func GetSearch() Search     { return Get().Search }
func GetLLM() LLM           { return Get().LLM }
func GetStore() Store       { return Get().Store }
func GetNews() News         { return Get().News }
func GetPipeline() Pipeline { return Get().Pipeline }
func GetLogging() Logging   { return Get().Logging }

func GetSearchAPIKey() string { return Get().Search.APIKey }
func GetChatKey() string      { return Get().LLM.Chat.Key }
func GetChatModel() string    { return Get().LLM.Chat.Model }
func IsDebugMode() bool       { return Get().App.Debug }

// HasSearchKey reports whether live search is configured.
func HasSearchKey() bool { return Get().Search.APIKey != "" }

// HasChatKey reports whether the language model is configured.
func HasChatKey() bool { return Get().LLM.Chat.Key != "" }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
