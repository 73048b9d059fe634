package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config carries tool-wide defaults. Flags override config file values,
// which override environment values. Everything here is optional; zero
// values fall back to the built-in defaults.
type Config struct {
	ChunkSize     string `json:"chunk_size"`     // human-readable, e.g. "1000MB"
	HashAlgorithm string `json:"hash_algorithm"` // xxh64, md5 or sha256
	OutputDir     string `json:"output_dir"`
	LogDir        string `json:"log_dir"`
	InventoryDir  string `json:"inventory_dir"`
}

const (
	DefaultChunkSize     = "1000MB"
	DefaultHashAlgorithm = "xxh64"
)

func Default() *Config {
	return &Config{
		ChunkSize:     DefaultChunkSize,
		HashAlgorithm: DefaultHashAlgorithm,
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func LoadFromEnv() *Config {
	return &Config{
		ChunkSize:     getEnv("SHARD_CHUNK_SIZE", DefaultChunkSize),
		HashAlgorithm: getEnv("SHARD_HASH_ALGORITHM", DefaultHashAlgorithm),
		OutputDir:     getEnv("SHARD_OUTPUT_DIR", ""),
		LogDir:        getEnv("SHARD_LOG_DIR", ""),
		InventoryDir:  getEnv("SHARD_INVENTORY_DIR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
