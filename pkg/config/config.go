package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Dedup     DedupConfig
	Scoring   ScoringConfig
	Analysis  AnalysisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	APIKey         string
	CollectionName string
}

type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
}

type EmbeddingConfig struct {
	Provider  string
	Dimension int
	CacheTTL  int
}

// DedupConfig carries both similarity thresholds. AutoLinkThreshold gates
// attach-or-create during RFP ingestion; SearchThreshold is the looser cutoff
// used by interactive similarity search. They are intentionally separate
// knobs pending a product decision on unifying them.
type DedupConfig struct {
	AutoLinkThreshold float64
	SearchThreshold   float64
	TopK              int
	MaxTitleLength    int
}

type ScoringConfig struct {
	AlgorithmVersion string
}

type AnalysisConfig struct {
	SignalTimeoutSec int
	MaxWorkers       int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/onelens")

	viper.SetEnvPrefix("ONELENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/onelens.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "feature_embeddings")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 60)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("embedding.provider", "lexical")
	viper.SetDefault("embedding.dimension", 384)
	viper.SetDefault("embedding.cacheTTL", 86400)

	viper.SetDefault("dedup.autoLinkThreshold", 0.85)
	viper.SetDefault("dedup.searchThreshold", 0.7)
	viper.SetDefault("dedup.topK", 10)
	viper.SetDefault("dedup.maxTitleLength", 100)

	viper.SetDefault("scoring.algorithmVersion", "1.0")

	viper.SetDefault("analysis.signalTimeoutSec", 30)
	viper.SetDefault("analysis.maxWorkers", 4)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
