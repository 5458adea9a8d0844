package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/extract"
)

// OrderWriter is the persistence path.
type OrderWriter interface {
	CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.CreateOrderResult, error)
	Persist(ctx context.Context, parsed entity.ParsedOrder) (*entity.CreateOrderResult, error)
}

// Processed is the outcome of ExtractAndPersist.
type Processed struct {
	Parsed entity.ParsedOrder        `json:"parsed"`
	Result *entity.CreateOrderResult `json:"result"`
}

// Pipeline coordinates text acquisition, field extraction and persistence.
// Within one call the stages run strictly in sequence; a Pipeline holds no
// per-request state and may be shared across goroutines.
type Pipeline struct {
	cfg      common.PipelineConfig
	acquirer extract.TextAcquirer
	fields   extract.FieldExtractor
	writer   OrderWriter
	logger   *slog.Logger
}

func New(cfg common.PipelineConfig, acquirer extract.TextAcquirer, fields extract.FieldExtractor, writer OrderWriter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg.WithDefaults(),
		acquirer: acquirer,
		fields:   fields,
		writer:   writer,
		logger:   logger,
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() common.PipelineConfig { return p.cfg }

// Extract parses a document into typed drafts without touching storage.
func (p *Pipeline) Extract(ctx context.Context, data []byte, filename string) (entity.ParsedOrder, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	ctx = common.WithFilename(ctx, filename)
	start := time.Now()

	if max := p.cfg.MaxDocumentBytes; max > 0 && int64(len(data)) > max {
		return entity.ParsedOrder{}, common.InvalidRequestShape(
			fmt.Sprintf("document is %d bytes; the limit is %d bytes", len(data), max), "document")
	}

	text, err := p.acquirer.Acquire(ctx, data, filename)
	if err != nil {
		p.logger.Error("pipeline.acquire.failed", "req_id", rid, "filename", filename, "error", err)
		return entity.ParsedOrder{}, err
	}
	p.logger.Debug("pipeline.acquire.ok",
		"req_id", rid,
		"filename", filename,
		"tier", text.Tier,
		"pages", text.Pages,
		"chars", text.Chars,
	)

	parsed, err := p.fields.ExtractFields(ctx, text, filename)
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "req_id", rid, "filename", filename, "error", err)
		return entity.ParsedOrder{}, err
	}
	p.logger.Info("pipeline.extract.ok",
		"req_id", rid,
		"filename", filename,
		"tier", parsed.Tier,
		"devices", len(parsed.Devices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return parsed, nil
}

// ExtractAndPersist runs Extract, then writes the result. Persistence never
// starts unless extraction succeeded.
func (p *Pipeline) ExtractAndPersist(ctx context.Context, data []byte, filename string) (*Processed, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	parsed, err := p.Extract(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	res, err := p.writer.Persist(ctx, parsed)
	if err != nil {
		p.logger.Error("pipeline.persist.failed", "req_id", rid, "filename", filename, "error", err)
		return nil, err
	}
	p.logger.Info("pipeline.persist.ok",
		"req_id", rid,
		"filename", filename,
		"order_id", res.Order.ID,
		"patient_id", res.Order.PatientID,
		"has_duplicates", res.HasDuplicates,
	)
	return &Processed{Parsed: parsed, Result: res}, nil
}

// CreateOrder is the persistence-only entry point.
func (p *Pipeline) CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.CreateOrderResult, error) {
	return p.writer.CreateOrder(ctx, req)
}
