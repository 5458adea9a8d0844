package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Format   string         `json:"format"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Complete sends prompt as a single user message with JSON output mode and
// returns the message content unparsed.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
		"file", common.FilenameFromContext(ctx),
	)

	body := chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Format:   "json",
		Stream:   false,
		Options:  map[string]any{"temperature": c.cfg.Temperature},
	}

	raw, err := llm.PostJSON(ctx, c.http, c.cfg.BaseURL+"/api/chat", body, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", c.classify(ctx, err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.MalformedModelOutput("unexpected response envelope from Ollama", string(raw), err)
	}
	if cr.Error != "" {
		return "", common.InferenceUnavailable("Ollama returned an error: "+cr.Error, errors.New(cr.Error))
	}

	content := strings.TrimSpace(cr.Message.Content)
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// classify maps transport and status failures onto InferenceUnavailable with
// a cause that tells unreachable backends, slow backends and missing models apart.
// A failure caused by the caller's own context is returned as is.
func (c *Client) classify(ctx context.Context, err error) error {
	var se *llm.StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusNotFound {
			msg := fmt.Sprintf("Model %s not found. Run: ollama pull %s", c.cfg.Model, c.cfg.Model)
			return common.InferenceUnavailable(msg, fmt.Errorf("%w: %w", llm.ErrModelNotFound, err))
		}
		msg := fmt.Sprintf("Ollama request failed with status %d", se.Status)
		return common.InferenceUnavailable(msg, err)
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		msg := fmt.Sprintf("Ollama at %s did not answer within %s. The model may still be loading; raise OLLAMA_TIMEOUT if this persists.",
			c.cfg.BaseURL, c.cfg.Timeout)
		return common.InferenceUnavailable(msg, fmt.Errorf("%w: %w", llm.ErrInferenceTimeout, err))
	}
	msg := fmt.Sprintf("Cannot connect to Ollama at %s. Make sure Ollama is running.", c.cfg.BaseURL)
	return common.InferenceUnavailable(msg, fmt.Errorf("%w: %w", llm.ErrBackendUnreachable, err))
}
