package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/llm"
	"github.com/joseph-ayodele/medorders/internal/ocr"
)

// LLMExtractor runs prompt building, inference, decoding and mapping.
type LLMExtractor struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewLLMExtractor(completer llm.Completer, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{completer: completer, logger: logger}
}

func (e *LLMExtractor) ExtractFields(ctx context.Context, text ocr.Result, filename string) (entity.ParsedOrder, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()

	raw, err := e.completer.Complete(ctx, llm.BuildExtractionPrompt(text.Text))
	if err != nil {
		return entity.ParsedOrder{}, err
	}
	doc, err := llm.DecodeResponse(raw, e.logger)
	if err != nil {
		return entity.ParsedOrder{}, err
	}
	parsed, err := MapOrder(doc, Provenance{
		Filename: filename,
		Model:    e.completer.Model(),
		Tier:     text.Tier,
		Pages:    text.Pages,
	})
	if err != nil {
		e.logger.Warn("extract.map.incomplete", "req_id", rid, "filename", filename, "error", err)
		return entity.ParsedOrder{}, err
	}

	e.logger.Info("extract.fields.ok",
		"req_id", rid,
		"filename", filename,
		"devices", len(parsed.Devices),
		"tier", parsed.Tier,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return parsed, nil
}
