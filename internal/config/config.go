package config

import (
	"os"
	"strconv"
	"time"

	"tabprep/domain/datareadiness/profiling"
	"tabprep/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Engine   profiling.Config
	Preview  PreviewConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory dataset store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database is configured
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// StorageConfig holds file system paths and limits
type StorageConfig struct {
	UploadDir     string
	ProcessedDir  string
	MaxUploadSize int64
	SheetName     string
}

// PreviewConfig holds preview settings
type PreviewConfig struct {
	Rows int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: *loadDatabaseConfig(),
		Storage:  *loadStorageConfig(),
		Engine:   loadEngineConfig(),
		Preview:  PreviewConfig{Rows: getEnvIntOrDefault("PREVIEW_ROWS", 50)},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		UploadDir:     getEnvOrDefault("UPLOAD_DIR", "uploads"),
		ProcessedDir:  getEnvOrDefault("PROCESSED_DIR", "processed"),
		MaxUploadSize: getEnvInt64OrDefault("MAX_UPLOAD_SIZE", 50*1024*1024),
		SheetName:     getEnvOrDefault("EXCEL_SHEET", "Sheet1"),
	}
}

func loadEngineConfig() profiling.Config {
	d := profiling.DefaultConfig()
	return profiling.Config{
		DatetimeRatio:                getEnvFloatOrDefault("DATETIME_RATIO", d.DatetimeRatio),
		NumericCardinalityMultiplier: getEnvFloatOrDefault("NUMERIC_CARDINALITY_MULTIPLIER", d.NumericCardinalityMultiplier),
		CategoricalRatio:             getEnvFloatOrDefault("CATEGORICAL_RATIO", d.CategoricalRatio),
		CategoricalMinDistinct:       getEnvIntOrDefault("CATEGORICAL_MIN_DISTINCT", d.CategoricalMinDistinct),
		CategoricalMaxDistinct:       getEnvIntOrDefault("CATEGORICAL_MAX_DISTINCT", d.CategoricalMaxDistinct),
		IQRMultiplier:                getEnvFloatOrDefault("IQR_MULTIPLIER", d.IQRMultiplier),
		ZThreshold:                   getEnvFloatOrDefault("Z_THRESHOLD", d.ZThreshold),
		TopCategories:                getEnvIntOrDefault("TOP_CATEGORIES", d.TopCategories),
		ProfileWorkers:               getEnvIntOrDefault("PROFILE_WORKERS", d.ProfileWorkers),
		OneHotMaxCategories:          getEnvIntOrDefault("ONE_HOT_MAX_CATEGORIES", d.OneHotMaxCategories),
	}
}

func validateConfig(config *Config) error {
	if config.Storage.UploadDir == "" || config.Storage.ProcessedDir == "" {
		return errors.ConfigInvalid("upload and processed directories are required")
	}
	if config.Storage.MaxUploadSize <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_SIZE must be positive")
	}
	if config.Preview.Rows <= 0 {
		return errors.ConfigInvalid("PREVIEW_ROWS must be positive")
	}

	e := config.Engine
	if e.DatetimeRatio <= 0 || e.DatetimeRatio > 1 {
		return errors.ConfigInvalid("DATETIME_RATIO must be in (0, 1]")
	}
	if e.CategoricalMinDistinct > e.CategoricalMaxDistinct {
		return errors.ConfigInvalid("CATEGORICAL_MIN_DISTINCT exceeds CATEGORICAL_MAX_DISTINCT")
	}
	if e.IQRMultiplier <= 0 || e.ZThreshold <= 0 {
		return errors.ConfigInvalid("IQR_MULTIPLIER and Z_THRESHOLD must be positive")
	}
	if e.OneHotMaxCategories < 1 {
		return errors.ConfigInvalid("ONE_HOT_MAX_CATEGORIES must be at least 1")
	}
	if e.ProfileWorkers < 1 {
		return errors.ConfigInvalid("PROFILE_WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
