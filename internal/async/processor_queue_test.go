package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/pipeline"
)

type stubProcessor struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	delay time.Duration
}

func (s *stubProcessor) ExtractAndPersist(ctx context.Context, data []byte, filename string) (*pipeline.Processed, error) {
	n := s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, filename)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.fail[filename]; err != nil {
		return nil, err
	}
	return &pipeline.Processed{
		Result: &entity.CreateOrderResult{Order: &entity.Order{ID: int(n)}},
	}, nil
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))
	return path
}

type collector struct {
	mu  sync.Mutex
	out []Outcome
}

func (c *collector) add(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, o)
}

func (c *collector) byFile() map[string]Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[string]Outcome, len(c.out))
	for _, o := range c.out {
		m[filepath.Base(o.Job.Path)] = o
	}
	return m
}

func TestProcessorQueue_ProcessesEveryJob(t *testing.T) {
	dir := t.TempDir()
	proc := &stubProcessor{fail: map[string]error{
		"bad.pdf": common.IncompleteExtraction("patient.last_name"),
	}}
	var col collector
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(2), WithResultHandler(col.add))

	names := []string{"a.pdf", "b.pdf", "c.pdf", "bad.pdf", "d.pdf"}
	for _, n := range names {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, n)}))
	}
	q.Shutdown(context.Background())

	got := col.byFile()
	require.Len(t, got, len(names))
	assert.Equal(t, int32(len(names)), proc.calls.Load())

	bad := got["bad.pdf"]
	assert.True(t, errors.Is(bad.Err, common.ErrIncompleteExtraction))
	assert.Zero(t, bad.OrderID())

	for _, n := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		assert.NoError(t, got[n].Err, n)
		assert.NotZero(t, got[n].OrderID(), n)
		assert.False(t, got[n].Job.SubmittedAt.IsZero())
	}
}

func TestProcessorQueue_RejectsInvalidFilesBeforeProcessing(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("plain text"), 0o644))
	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(big, append([]byte("%PDF-"), make([]byte, 64)...), 0o644))

	proc := &stubProcessor{}
	var col collector
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithMaxDocumentBytes(32), WithResultHandler(col.add))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: notPDF}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: big}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: filepath.Join(dir, "missing.pdf")}))
	q.Shutdown(context.Background())

	got := col.byFile()
	require.Len(t, got, 3)
	assert.True(t, errors.Is(got["scan.pdf"].Err, common.ErrInvalidRequestShape))
	assert.True(t, errors.Is(got["big.pdf"].Err, common.ErrInvalidRequestShape))
	assert.True(t, errors.Is(got["missing.pdf"].Err, os.ErrNotExist))
	assert.Zero(t, proc.calls.Load())
}

func TestProcessorQueue_TimeoutCancelsJob(t *testing.T) {
	dir := t.TempDir()
	proc := &stubProcessor{delay: time.Minute}
	var col collector
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond), WithResultHandler(col.add))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, "slow.pdf")}))
	q.Shutdown(context.Background())

	got := col.byFile()
	require.Len(t, got, 1)
	assert.ErrorIs(t, got["slow.pdf"].Err, context.DeadlineExceeded)
}

func TestProcessorQueue_TraceIDPropagates(t *testing.T) {
	dir := t.TempDir()
	var seen atomic.Value
	proc := processorFunc(func(ctx context.Context, data []byte, filename string) (*pipeline.Processed, error) {
		seen.Store(common.RequestIDFromContext(ctx))
		return &pipeline.Processed{}, nil
	})
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, "a.pdf"), TraceID: "trace-1"}))
	q.Shutdown(context.Background())
	assert.Equal(t, "trace-1", seen.Load())
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&stubProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "a.pdf"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

type processorFunc func(ctx context.Context, data []byte, filename string) (*pipeline.Processed, error)

func (f processorFunc) ExtractAndPersist(ctx context.Context, data []byte, filename string) (*pipeline.Processed, error) {
	return f(ctx, data, filename)
}
