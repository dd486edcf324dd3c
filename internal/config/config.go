// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/the-hive/segmenter/internal/ocr"
)

// Config holds the segmenter configuration
type Config struct {
	LogFile  string            `mapstructure:"log_file"`
	OCR      ocr.Config        `mapstructure:"ocr"`
	DocAI    ocr.DocAISettings `mapstructure:"docai"`
	Vision   VisionConfig      `mapstructure:"vision"`
	Chunking ChunkingConfig    `mapstructure:"chunking"`
	Pipeline PipelineConfig    `mapstructure:"pipeline"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Qdrant   QdrantConfig      `mapstructure:"qdrant"`
	SQLite   SQLiteConfig      `mapstructure:"sqlite"`
	Embedder EmbedderConfig    `mapstructure:"embedder"`
	GCS      GCSConfig         `mapstructure:"gcs"`
}

// VisionConfig holds Cloud Vision client settings
type VisionConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

// ChunkingConfig holds chunk size targets
type ChunkingConfig struct {
	MinTokens  int `mapstructure:"min_tokens"`
	MaxTokens  int `mapstructure:"max_tokens"`
	MinOverlap int `mapstructure:"min_overlap"`
	MaxOverlap int `mapstructure:"max_overlap"`
}

// PipelineConfig holds batch settings
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// RedisConfig holds job queue connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	QueueKey string `mapstructure:"queue_key"`
}

// QdrantConfig holds vector sink settings; an empty address disables it
type QdrantConfig struct {
	Address    string `mapstructure:"address"`
	Collection string `mapstructure:"collection"`
}

// SQLiteConfig holds chunk ledger settings; an empty path disables it
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// EmbedderConfig selects the embedding backend used by the vector sink
type EmbedderConfig struct {
	Provider  string `mapstructure:"provider"` // "mock" or "ollama"
	URL       string `mapstructure:"url"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

// GCSConfig names the source folder for cloud batches
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

func setDefaults(v *viper.Viper) {
	def := ocr.DefaultConfig()
	v.SetDefault("ocr.engine_priority", def.EnginePriority)
	v.SetDefault("ocr.language_hints", def.LanguageHints)
	v.SetDefault("ocr.vision_batch_size", def.VisionBatchSize)
	v.SetDefault("ocr.tesseract_lang", def.TesseractLang)
	v.SetDefault("ocr.tesseract_psm", def.TesseractPSM)
	v.SetDefault("ocr.tesseract_oem", def.TesseractOEM)
	v.SetDefault("ocr.tesseract_dpi", def.TesseractDPI)
	v.SetDefault("ocr.max_pages", def.MaxPages)
	v.SetDefault("ocr.timeout_sec", def.TimeoutSec)
	v.SetDefault("ocr.enable_preprocess", def.EnablePreprocess)

	env := ocr.DocAISettingsFromEnv()
	v.SetDefault("docai.project_id", env.ProjectID)
	v.SetDefault("docai.location", env.Location)
	v.SetDefault("docai.processor_id", env.ProcessorID)
	v.SetDefault("docai.credentials_file", env.CredentialsFile)
	v.SetDefault("vision.credentials_file", env.CredentialsFile)

	v.SetDefault("chunking.min_tokens", 300)
	v.SetDefault("chunking.max_tokens", 700)
	v.SetDefault("chunking.min_overlap", 50)
	v.SetDefault("chunking.max_overlap", 150)

	v.SetDefault("pipeline.workers", 4)

	v.SetDefault("redis.addr", envOr("REDIS_ADDR", "127.0.0.1:6379"))
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", os.Getenv("REDIS_PASSWORD"))
	v.SetDefault("redis.queue_key", "jobs:segment")

	v.SetDefault("qdrant.address", "")
	v.SetDefault("qdrant.collection", "chunks")
	v.SetDefault("sqlite.path", "")

	v.SetDefault("embedder.provider", "mock")
	v.SetDefault("embedder.url", "http://localhost:11434")
	v.SetDefault("embedder.model", "nomic-embed-text")
	v.SetDefault("embedder.dimension", 768)

	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "")
	v.SetDefault("gcs.credentials_file", env.CredentialsFile)

	v.SetDefault("log_file", "")
}

// LoadConfig loads configuration from an optional YAML file, the
// environment (SEGMENTER_ prefix) and a .env file in the working directory
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("LoadConfig: failed to load .env: %v", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("LoadConfig: using config file %s", v.ConfigFileUsed())
	}

	v.SetEnvPrefix("SEGMENTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 4
		log.Printf("LoadConfig: pipeline.workers was not positive, defaulting to %d", cfg.Pipeline.Workers)
	}
	if cfg.OCR.TimeoutSec <= 0 {
		cfg.OCR.TimeoutSec = ocr.DefaultConfig().TimeoutSec
	}

	return &cfg, nil
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
