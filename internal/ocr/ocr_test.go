package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

type fakeDoc struct {
	pages  []string
	closed bool
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }

func (d *fakeDoc) Text(page int) (string, error) { return d.pages[page], nil }

func (d *fakeDoc) RenderPNG(page int, _ float64) ([]byte, error) {
	return []byte{byte(page)}, nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeRecognizer struct {
	mu    sync.Mutex
	texts map[string]string // keyed by image file base name
	err   error
	calls int
}

func (r *fakeRecognizer) Recognize(_ context.Context, imagePath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	for name, txt := range r.texts {
		if strings.HasSuffix(imagePath, name) {
			return txt, nil
		}
	}
	return "", nil
}

func opener(doc *fakeDoc) Opener {
	return func(path string) (Document, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return doc, nil
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestAcquire_NativeTextAccepted(t *testing.T) {
	tmp := t.TempDir()
	doc := &fakeDoc{pages: []string{"Patient: Jane Doe\tMRN 12345", "Device: Glucose Monitor"}}
	rec := &fakeRecognizer{}
	e := NewExtractor(Config{TempDir: tmp}, opener(doc), rec, slog.Default())

	res, err := e.Acquire(context.Background(), []byte("%PDF-1.4"), "order.pdf")
	require.NoError(t, err)

	assert.Equal(t, entity.TierNative, res.Tier)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Patient: Jane Doe MRN 12345\n\nDevice: Glucose Monitor", res.Text)
	assert.Zero(t, rec.calls)
	assert.True(t, doc.closed)
	assertEmptyDir(t, tmp)
}

func TestAcquire_FallsBackToOCRInPageOrder(t *testing.T) {
	tmp := t.TempDir()
	doc := &fakeDoc{pages: []string{"  ", "", "x"}}
	rec := &fakeRecognizer{texts: map[string]string{
		"page-001.png": "first page text",
		"page-002.png": "second page text",
		"page-003.png": "third page",
	}}
	e := NewExtractor(Config{TempDir: tmp, Concurrency: 3}, opener(doc), rec, nil)

	res, err := e.Acquire(context.Background(), []byte("%PDF-1.4"), "scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, entity.TierOCR, res.Tier)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 3, rec.calls)
	want := "\n--- Page 1 ---\nfirst page text\n\n--- Page 2 ---\nsecond page text\n\n--- Page 3 ---\nthird page"
	assert.Equal(t, want, res.Text)
	assertEmptyDir(t, tmp)
}

func TestAcquire_EmptyEverywhereIsUnreadable(t *testing.T) {
	tmp := t.TempDir()
	doc := &fakeDoc{pages: []string{""}}
	rec := &fakeRecognizer{texts: map[string]string{"page-001.png": ""}}
	e := NewExtractor(Config{TempDir: tmp}, opener(doc), rec, nil)

	_, err := e.Acquire(context.Background(), []byte("%PDF-1.4"), "blank.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnreadableDocument)

	var de *common.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0, de.Chars)
	assert.Contains(t, de.Error(), "Extracted 0 characters")
	assertEmptyDir(t, tmp)
}

func TestAcquire_ShortOCRTextIsUnreadable(t *testing.T) {
	doc := &fakeDoc{pages: []string{"", ""}}
	rec := &fakeRecognizer{texts: map[string]string{"page-001.png": "abc", "page-002.png": "de"}}
	e := NewExtractor(Config{TempDir: t.TempDir()}, opener(doc), rec, nil)

	_, err := e.Acquire(context.Background(), []byte("%PDF-1.4"), "short.pdf")
	var de *common.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 6, de.Chars) // "abc\nde"
}

func TestAcquire_RecognizerFailureCleansUp(t *testing.T) {
	tmp := t.TempDir()
	doc := &fakeDoc{pages: []string{"", ""}}
	rec := &fakeRecognizer{err: errors.New("tesseract missing")}
	e := NewExtractor(Config{TempDir: tmp}, opener(doc), rec, nil)

	_, err := e.Acquire(context.Background(), []byte("%PDF-1.4"), "scan.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract missing")
	assert.True(t, doc.closed)
	assertEmptyDir(t, tmp)
}

func TestAcquire_OpenFailureIsUnreadable(t *testing.T) {
	tmp := t.TempDir()
	failing := func(string) (Document, error) { return nil, errors.New("not a pdf") }
	e := NewExtractor(Config{TempDir: tmp}, failing, &fakeRecognizer{}, nil)

	_, err := e.Acquire(context.Background(), []byte("garbage"), "bad.pdf")
	assert.ErrorIs(t, err, common.ErrUnreadableDocument)
	assertEmptyDir(t, tmp)
}

func TestAcquire_MaxPagesCapsRecognition(t *testing.T) {
	doc := &fakeDoc{pages: []string{"", "", "", ""}}
	rec := &fakeRecognizer{texts: map[string]string{
		"page-001.png": "one page of text",
		"page-002.png": "another page of text",
	}}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	e := NewExtractor(Config{TempDir: t.TempDir(), MaxPages: 2}, opener(doc), rec, logger)

	res, err := e.Acquire(context.Background(), []byte("%PDF-1.4"), "long.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, rec.calls)

	out := logs.String()
	assert.Contains(t, out, `"msg":"ocr.pages_capped"`)
	assert.Contains(t, out, `"pages":4`)
	assert.Contains(t, out, `"kept":2`)
}

func TestNormalize(t *testing.T) {
	in := "MRN:\t0012345  \r\n\r\n\r\n\r\nNPI  1234567890\fnext"
	assert.Equal(t, "MRN: 0012345\n\nNPI 1234567890\nnext", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

type recordingRunner struct {
	name string
	args []string
	out  []byte
	errb []byte
	err  error
}

func (r *recordingRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	r.name = name
	r.args = args
	return r.out, r.errb, r.err
}

func TestTesseractRecognizer_Args(t *testing.T) {
	r := &recordingRunner{out: []byte("hello\n-----\nworld")}
	rec := NewTesseractRecognizer("", "", "/usr/share/tessdata", r, nil)
	rec.PSM = 6

	txt, err := rec.Recognize(context.Background(), "/tmp/page-001.png")
	require.NoError(t, err)

	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"/tmp/page-001.png", "stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/usr/share/tessdata"}, r.args)
	assert.Equal(t, "hello\n\nworld", txt)
}

func TestTesseractRecognizer_ErrorCarriesStderr(t *testing.T) {
	r := &recordingRunner{errb: []byte("Error opening data file eng.traineddata"), err: errors.New("exit status 1")}
	rec := NewTesseractRecognizer("tesseract", "eng", "", r, nil)

	_, err := rec.Recognize(context.Background(), "/tmp/p.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eng.traineddata")
}
