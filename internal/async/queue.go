package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/medorders/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document to run through the full pipeline.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Outcome is reported once per job, success or failure.
type Outcome struct {
	Job       Job
	Processed *pipeline.Processed
	Err       error
	Elapsed   time.Duration
}

// OrderID is the persisted order id, or 0 when the job failed.
func (o Outcome) OrderID() int {
	if o.Processed == nil || o.Processed.Result == nil || o.Processed.Result.Order == nil {
		return 0
	}
	return o.Processed.Result.Order.ID
}

// Processor is satisfied by *pipeline.Pipeline.
type Processor interface {
	ExtractAndPersist(ctx context.Context, data []byte, filename string) (*pipeline.Processed, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
