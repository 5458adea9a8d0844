package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

type Config struct {
	MinChars    int // accept native text at or above this many characters, default 10
	DPI         int // rasterization DPI for scanned PDFs, default 300
	MaxPages    int // 0 = no limit
	Concurrency int // pages recognized in parallel, default 2
	TempDir     string
}

type Result struct {
	Text     string
	Tier     string // entity.TierNative | entity.TierOCR
	Pages    int
	Chars    int
	Duration time.Duration
}

type Extractor struct {
	cfg        Config
	open       Opener
	recognizer Recognizer
	logger     *slog.Logger
}

func NewExtractor(cfg Config, open Opener, recognizer Recognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = common.DefaultMinExtractedChars
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if open == nil {
		open = OpenFitz
	}
	return &Extractor{cfg: cfg, open: open, recognizer: recognizer, logger: logger}
}

// Acquire returns page-ordered text for a PDF. Native text is preferred; when
// it is shorter than MinChars every page is rasterized and recognized. The
// bytes and page images live in one temp dir that is removed on every path.
func (e *Extractor) Acquire(ctx context.Context, data []byte, filename string) (res Result, err error) {
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "medorders-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", rmErr)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("write temp document: %w", err)
	}

	doc, err := e.open(path)
	if err != nil {
		e.logger.Error("ocr.open_failed", "filename", filename, "error", err)
		return Result{}, common.UnreadableDocument(0).WithCause(err)
	}
	defer func() {
		if cErr := doc.Close(); cErr != nil {
			e.logger.Warn("failed to close document", "filename", filename, "error", cErr)
		}
	}()

	pages := doc.NumPage()
	native := e.nativeText(doc, pages, filename)
	if n := charCount(native); n >= e.cfg.MinChars {
		e.logger.Debug("ocr.native.ok", "filename", filename, "pages", pages, "chars", n)
		return Result{Text: native, Tier: entity.TierNative, Pages: pages, Chars: n}, nil
	}

	e.logger.Info("ocr.fallback", "filename", filename, "pages", pages, "native_chars", charCount(native))
	if e.recognizer == nil {
		return Result{}, common.UnreadableDocument(charCount(native)).WithCause(fmt.Errorf("no optical recognizer configured"))
	}

	if max := e.cfg.MaxPages; max > 0 && pages > max {
		e.logger.Warn("ocr.pages_capped", "filename", filename, "pages", pages, "kept", max)
		pages = max
	}
	pageTexts, err := e.recognizePages(ctx, doc, pages, tmpDir)
	if err != nil {
		return Result{}, err
	}

	n := charCount(strings.Join(pageTexts, "\n"))
	if n < e.cfg.MinChars {
		e.logger.Warn("ocr.unreadable", "filename", filename, "pages", len(pageTexts), "chars", n)
		return Result{}, common.UnreadableDocument(n)
	}

	parts := make([]string, len(pageTexts))
	for i, t := range pageTexts {
		parts[i] = fmt.Sprintf("\n--- Page %d ---\n%s", i+1, t)
	}
	e.logger.Debug("ocr.recognize.ok", "filename", filename, "pages", len(pageTexts), "chars", n)
	return Result{Text: strings.Join(parts, "\n"), Tier: entity.TierOCR, Pages: len(pageTexts), Chars: n}, nil
}

func (e *Extractor) nativeText(doc Document, pages int, filename string) string {
	var b strings.Builder
	for i := 0; i < pages; i++ {
		txt, err := doc.Text(i)
		if err != nil {
			e.logger.Warn("native text failed", "filename", filename, "page", i+1, "error", err)
			continue
		}
		txt = Normalize(txt)
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	return b.String()
}

// recognizePages renders pages one at a time and recognizes them in parallel;
// the returned slice is in page order.
func (e *Extractor) recognizePages(ctx context.Context, doc Document, pages int, dir string) ([]string, error) {
	texts := make([]string, pages)

	var renderMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := 0; i < pages; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			renderMu.Lock()
			png, err := doc.RenderPNG(i, float64(e.cfg.DPI))
			renderMu.Unlock()
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}
			img := filepath.Join(dir, fmt.Sprintf("page-%03d.png", i+1))
			if err := os.WriteFile(img, png, 0o600); err != nil {
				return fmt.Errorf("write page %d: %w", i+1, err)
			}
			txt, err := e.recognizer.Recognize(gctx, img)
			if err != nil {
				return fmt.Errorf("recognize page %d: %w", i+1, err)
			}
			texts[i] = Normalize(txt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

func charCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
