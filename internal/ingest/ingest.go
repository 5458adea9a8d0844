package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/medorders/internal/common"
)

var pdfMagic = []byte("%PDF-")

// Document is a PDF read from disk and checked at the boundary.
type Document struct {
	Path     string
	Filename string
	Data     []byte
}

// ValidateDocument rejects input the pipeline must never see: empty bytes,
// bytes above maxBytes (when positive) and bytes without a PDF header.
func ValidateDocument(data []byte, filename string, maxBytes int64) error {
	if len(data) == 0 {
		return common.InvalidRequestShape(fmt.Sprintf("document %q is empty", filename), "document")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return common.InvalidRequestShape(
			fmt.Sprintf("document %q is %d bytes; the limit is %d bytes", filename, len(data), maxBytes), "document")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return common.InvalidRequestShape(fmt.Sprintf("document %q is not a PDF", filename), "document")
	}
	return nil
}

// ReadDocument stats path before reading it so an oversized file is never loaded.
func ReadDocument(path string, maxBytes int64) (Document, error) {
	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Document{}, common.InvalidRequestShape(fmt.Sprintf("%s is a directory", path), "document")
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return Document{}, common.InvalidRequestShape(
			fmt.Sprintf("document %q is %d bytes; the limit is %d bytes", name, info.Size(), maxBytes), "document")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ValidateDocument(data, name, maxBytes); err != nil {
		return Document{}, err
	}
	return Document{Path: path, Filename: name, Data: data}, nil
}

// extSet normalizes extensions to lowercase without the leading dot.
// An empty list means PDF only.
func extSet(exts []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	if len(set) == 0 {
		set["pdf"] = struct{}{}
	}
	return set
}

func allowed(path string, exts map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
