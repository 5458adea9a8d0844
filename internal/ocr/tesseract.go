package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Recognizer turns one page image into plain text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractRecognizer runs the tesseract CLI through a Runner.
type TesseractRecognizer struct {
	Bin         string
	Lang        string
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default

	runner Runner
	logger *slog.Logger
}

// NewTesseractRecognizer applies defaults and uses the exec runner when r is nil.
func NewTesseractRecognizer(bin, lang, tessdataDir string, r Runner, logger *slog.Logger) *TesseractRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if bin == "" {
		bin = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	if r == nil {
		r = execRunner{}
	}
	return &TesseractRecognizer{Bin: bin, Lang: lang, TessdataDir: tessdataDir, runner: r, logger: logger}
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{imagePath, "stdout", "-l", t.Lang}
	if t.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.PSM))
	}
	if t.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", t.OEM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}

	out, errb, err := t.runner.Run(ctx, t.Bin, t.logger, args...)
	if err != nil {
		msg := strings.TrimSpace(truncate(string(errb), 512))
		if msg != "" {
			return "", fmt.Errorf("tesseract: %w: %s", err, msg)
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	// minor cleanup of obvious line noise
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
