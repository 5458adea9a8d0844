package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"max_pages"`
	Concurrency   int    `yaml:"concurrency"`
}

// LLMConfig holds inference backend configuration
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PipelineConfig is the explicit configuration object handed to the pipeline.
type PipelineConfig struct {
	InferenceModel          string `yaml:"inference_model"`
	MaxDocumentBytes        int64  `yaml:"max_document_bytes"`
	MinExtractedChars       int    `yaml:"min_extracted_chars"`
	DuplicateLookbackHours  int    `yaml:"duplicate_lookback_hours"`
	DuplicateScoreThreshold int    `yaml:"duplicate_score_threshold"`

	// TreatSentinelNPIAsAbsent makes the resolver insert a fresh prescriber
	// for the all-zero NPI instead of pooling every such prescriber on one row.
	TreatSentinelNPIAsAbsent bool `yaml:"sentinel_npi_as_absent"`
}

// IngestConfig holds batch and inbox settings
type IngestConfig struct {
	InboxDir string `yaml:"inbox_dir"`
	Workers  int    `yaml:"workers"`
}

const (
	DefaultInferenceModel          = "llama3.1:8b"
	DefaultMaxDocumentBytes        = 10 * 1024 * 1024
	DefaultMinExtractedChars       = 10
	DefaultDuplicateLookbackHours  = 48
	DefaultDuplicateScoreThreshold = 2
)

// DefaultPipelineConfig returns the pipeline defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		InferenceModel:          DefaultInferenceModel,
		MaxDocumentBytes:        DefaultMaxDocumentBytes,
		MinExtractedChars:       DefaultMinExtractedChars,
		DuplicateLookbackHours:  DefaultDuplicateLookbackHours,
		DuplicateScoreThreshold: DefaultDuplicateScoreThreshold,
	}
}

// WithDefaults fills zero fields. A negative lookback is kept: it disables the window.
func (p PipelineConfig) WithDefaults() PipelineConfig {
	d := DefaultPipelineConfig()
	if p.InferenceModel == "" {
		p.InferenceModel = d.InferenceModel
	}
	if p.MaxDocumentBytes <= 0 {
		p.MaxDocumentBytes = d.MaxDocumentBytes
	}
	if p.MinExtractedChars <= 0 {
		p.MinExtractedChars = d.MinExtractedChars
	}
	if p.DuplicateLookbackHours == 0 {
		p.DuplicateLookbackHours = d.DuplicateLookbackHours
	}
	if p.DuplicateScoreThreshold <= 0 {
		p.DuplicateScoreThreshold = d.DuplicateScoreThreshold
	}
	return p
}

// LookbackWindow returns the duplicate scan window; zero means unbounded.
func (p PipelineConfig) LookbackWindow() time.Duration {
	if p.DuplicateLookbackHours <= 0 {
		return 0
	}
	return time.Duration(p.DuplicateLookbackHours) * time.Hour
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
		OCR: OCRConfig{
			Tesseract:     "tesseract",
			TesseractLang: "eng",
			DPI:           300,
			Concurrency:   2,
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434",
			Temperature: 0.1,
			Timeout:     120 * time.Second,
		},
		Pipeline: DefaultPipelineConfig(),
		Ingest:   IngestConfig{Workers: 2},
	}
}

// LoadConfig loads defaults, then the YAML file named by MEDORDERS_CONFIG (if any),
// then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("MEDORDERS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.Concurrency = getEnvAsInt("OCR_CONCURRENCY", c.OCR.Concurrency)

	c.LLM.BaseURL = getEnv("OLLAMA_HOST", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OLLAMA_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OLLAMA_TIMEOUT", c.LLM.Timeout)

	c.Pipeline.InferenceModel = getEnv("OLLAMA_MODEL", c.Pipeline.InferenceModel)
	c.Pipeline.MaxDocumentBytes = getEnvAsInt64("MAX_DOCUMENT_BYTES", c.Pipeline.MaxDocumentBytes)
	c.Pipeline.MinExtractedChars = getEnvAsInt("MIN_EXTRACTED_CHARS", c.Pipeline.MinExtractedChars)
	c.Pipeline.DuplicateLookbackHours = getEnvAsInt("DUPLICATE_LOOKBACK_HOURS", c.Pipeline.DuplicateLookbackHours)
	c.Pipeline.DuplicateScoreThreshold = getEnvAsInt("DUPLICATE_SCORE_THRESHOLD", c.Pipeline.DuplicateScoreThreshold)
	c.Pipeline.TreatSentinelNPIAsAbsent = getEnvAsBool("SENTINEL_NPI_AS_ABSENT", c.Pipeline.TreatSentinelNPIAsAbsent)

	c.Ingest.InboxDir = getEnv("INBOX_DIR", c.Ingest.InboxDir)
	c.Ingest.Workers = getEnvAsInt("WORKERS", c.Ingest.Workers)
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. requireDB is false for
// commands that run on the in-memory database.
func (c *Config) Validate(requireDB bool) error {
	if requireDB && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OLLAMA_HOST is required", ErrInvalidInput)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return NewAppError("CONFIG_ERROR", "OLLAMA_TEMPERATURE must be within [0, 1]", ErrInvalidInput)
	}
	if c.Pipeline.MaxDocumentBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_DOCUMENT_BYTES must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MinExtractedChars <= 0 {
		return NewAppError("CONFIG_ERROR", "MIN_EXTRACTED_CHARS must be positive", ErrInvalidInput)
	}
	if c.Pipeline.DuplicateScoreThreshold <= 0 {
		return NewAppError("CONFIG_ERROR", "DUPLICATE_SCORE_THRESHOLD must be positive", ErrInvalidInput)
	}
	return nil
}
