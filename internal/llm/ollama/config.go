package ollama

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/medorders/internal/common"
)

// Config for the Ollama client.
type Config struct {
	BaseURL     string        // default http://localhost:11434
	Model       string        // e.g. "llama3.1:8b"
	Temperature float32       // kept low for stable extraction
	Timeout     time.Duration // http client timeout for one completion
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = common.DefaultInferenceModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FromConfig builds a client from the LLM section and the configured model.
func FromConfig(llm common.LLMConfig, model string, logger *slog.Logger) *Client {
	return NewClient(Config{
		BaseURL:     llm.BaseURL,
		Model:       model,
		Temperature: llm.Temperature,
		Timeout:     llm.Timeout,
	}, logger)
}

// Model returns the model name sent with every request.
func (c *Client) Model() string { return c.cfg.Model }
