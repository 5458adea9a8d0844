package ocr

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// Document is an opened PDF that can yield native page text and page rasters.
type Document interface {
	NumPage() int
	Text(page int) (string, error)
	RenderPNG(page int, dpi float64) ([]byte, error)
	Close() error
}

// Opener opens the document stored at path.
type Opener func(path string) (Document, error)

type fitzDocument struct {
	doc *fitz.Document
}

// OpenFitz opens path with MuPDF.
func OpenFitz(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

func (f *fitzDocument) NumPage() int {
	return f.doc.NumPage()
}

func (f *fitzDocument) Text(page int) (string, error) {
	return f.doc.Text(page)
}

func (f *fitzDocument) RenderPNG(page int, dpi float64) ([]byte, error) {
	return f.doc.ImagePNG(page, dpi)
}

func (f *fitzDocument) Close() error {
	return f.doc.Close()
}
