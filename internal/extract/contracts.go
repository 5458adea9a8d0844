package extract

import (
	"context"

	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/ocr"
)

// TextAcquirer is stage 1: document bytes -> page-ordered text.
type TextAcquirer interface {
	Acquire(ctx context.Context, data []byte, filename string) (ocr.Result, error)
}

// FieldExtractor is stage 2: text -> typed order drafts.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text ocr.Result, filename string) (entity.ParsedOrder, error)
}

var (
	_ TextAcquirer   = (*ocr.Extractor)(nil)
	_ FieldExtractor = (*LLMExtractor)(nil)
)
