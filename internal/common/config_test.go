package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the tests assert on; getEnv treats "" as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MEDORDERS_CONFIG", "DB_URL", "DB_MAX_CONNS", "GRPC_ADDR", "OCR_DPI", "OCR_MAX_PAGES",
		"OLLAMA_HOST", "OLLAMA_MODEL", "OLLAMA_TEMPERATURE", "OLLAMA_TIMEOUT",
		"DUPLICATE_LOOKBACK_HOURS", "SENTINEL_NPI_AS_ABSENT", "WORKERS",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medorders.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, DefaultPipelineConfig(), cfg.Pipeline)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadConfigPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDORDERS_CONFIG", writeYAML(t, `
server:
  grpc_addr: ":9090"
llm:
  base_url: "http://yaml-host:11434"
  timeout: 30s
pipeline:
  inference_model: "yaml-model"
  duplicate_lookback_hours: 12
ocr:
  dpi: 200
`))
	t.Setenv("OLLAMA_MODEL", "env-model")
	t.Setenv("OCR_DPI", "150")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// yaml over defaults
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr)
	assert.Equal(t, "http://yaml-host:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 12, cfg.Pipeline.DuplicateLookbackHours)
	// env over yaml
	assert.Equal(t, "env-model", cfg.Pipeline.InferenceModel)
	assert.Equal(t, 150, cfg.OCR.DPI)
	// untouched defaults survive a partial file
	assert.Equal(t, DefaultMinExtractedChars, cfg.Pipeline.MinExtractedChars)
	assert.Equal(t, "tesseract", cfg.OCR.Tesseract)
}

func TestLoadConfigBadFile(t *testing.T) {
	clearEnv(t)

	t.Setenv("MEDORDERS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)

	t.Setenv("MEDORDERS_CONFIG", writeYAML(t, "server: [not, a, map"))
	_, err = LoadConfig()
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestTypedEnvGetters(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("OLLAMA_TEMPERATURE", "0.3")
	t.Setenv("OLLAMA_TIMEOUT", "45s")
	t.Setenv("SENTINEL_NPI_AS_ABSENT", "true")
	t.Setenv("WORKERS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), cfg.Database.MaxConns)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Pipeline.TreatSentinelNPIAsAbsent)
	assert.Equal(t, 2, cfg.Ingest.Workers, "unparsable values keep the previous value")
}

func TestNegativeLookbackDisablesWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv("DUPLICATE_LOOKBACK_HOURS", "-1")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	p := cfg.Pipeline.WithDefaults()
	assert.Equal(t, -1, p.DuplicateLookbackHours)
	assert.Zero(t, p.LookbackWindow())

	zero := PipelineConfig{}.WithDefaults()
	assert.Equal(t, DefaultDuplicateLookbackHours, zero.DuplicateLookbackHours)
	assert.Equal(t, 48*time.Hour, zero.LookbackWindow())
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate(false))
	assert.ErrorIs(t, cfg.Validate(true), ErrInvalidInput)

	cfg.Database.DSN = "postgres://localhost/medorders"
	assert.NoError(t, cfg.Validate(true))

	cfg.LLM.Temperature = 1.5
	assert.ErrorIs(t, cfg.Validate(true), ErrInvalidInput)
}
