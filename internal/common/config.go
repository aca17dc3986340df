package common

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	Store    StoreConfig
	Pipeline PipelineConfig

	// RulesPath points at an optional JSON extraction-rules file;
	// empty means compiled-in defaults.
	RulesPath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr           string
	UploadDir      string
	OutputDir      string
	MaxUploadBytes int64
}

// OCRConfig holds tesseract-related configuration
type OCRConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	PSM         int    // page segmentation mode; 6 suits result-slip blocks
	OEM         int    // 1 = LSTM; leave 0 to use default
	TessdataDir string
}

// StoreConfig holds run-history database configuration
type StoreConfig struct {
	DBPath string
}

// PipelineConfig holds processing configuration
type PipelineConfig struct {
	Workers int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           getEnv("KCSE_ADDR", ":5000"),
			UploadDir:      getEnv("KCSE_UPLOAD_DIR", "./uploads"),
			OutputDir:      getEnv("KCSE_OUTPUT_DIR", "./outputs"),
			MaxUploadBytes: int64(getEnvAsInt("KCSE_MAX_UPLOAD_MB", 500)) << 20,
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("KCSE_TESSERACT", "tesseract"),
			Lang:        getEnv("KCSE_OCR_LANG", "eng"),
			PSM:         getEnvAsInt("KCSE_OCR_PSM", 6),
			OEM:         getEnvAsInt("KCSE_OCR_OEM", 0),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		Store: StoreConfig{
			DBPath: getEnv("KCSE_DB_PATH", "./kcse_runs.db"),
		},
		Pipeline: PipelineConfig{
			Workers: getEnvAsInt("KCSE_WORKERS", 4),
		},
		RulesPath: getEnv("KCSE_RULES_FILE", ""),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "KCSE_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "KCSE_MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	if c.Pipeline.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "KCSE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
