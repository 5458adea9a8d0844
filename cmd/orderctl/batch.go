package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medorders/internal/async"
	"github.com/joseph-ayodele/medorders/internal/export"
	"github.com/joseph-ayodele/medorders/internal/ingest"
)

var errNoDocuments = errors.New("no PDF documents found")

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		dir        string
		report     string
		workers    int
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every PDF under a directory on a worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			paths, stats, err := ingest.ScanDirectory(ctx, dir, ingest.ScanOptions{SkipHidden: skipHidden}, opts.logger)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("%w under %s", errNoDocuments, dir)
			}
			opts.logger.Info("batch starting", "dir", dir, "documents", stats.Matched, "unreadable", stats.Failed)

			if workers <= 0 {
				workers = opts.cfg.Ingest.Workers
			}
			bar := newProgressBar(int64(len(paths)), "processing", cmd.ErrOrStderr())

			var mu sync.Mutex
			rows := make([]export.BatchRow, 0, len(paths))
			failed := 0
			q := async.NewProcessorQueue(a.Pipeline, opts.logger,
				async.WithWorkers(workers),
				async.WithQueueSize(len(paths)),
				async.WithMaxDocumentBytes(a.Pipeline.Config().MaxDocumentBytes),
				async.WithResultHandler(func(o async.Outcome) {
					mu.Lock()
					defer mu.Unlock()
					rows = append(rows, export.RowFromOutcome(o))
					if o.Err != nil {
						failed++
					}
					_ = bar.Add(1)
				}),
			)
			for _, p := range paths {
				if err := q.Enqueue(ctx, async.Job{Path: p}); err != nil {
					break
				}
			}
			q.Shutdown(context.Background())
			_ = bar.Finish()

			for _, r := range rows {
				if r.Status == export.StatusFailed {
					_, _ = failColor.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", r.Filename, r.ErrorKind, r.Error)
				} else if r.Duplicates > 0 {
					_, _ = warnColor.Fprintf(cmd.OutOrStdout(), "%s: order %d has %d possible duplicate(s)\n", r.Filename, r.OrderID, r.Duplicates)
				}
			}

			if report != "" {
				xlsx, err := a.Export.BatchReportXLSX(rows)
				if err != nil {
					return err
				}
				if err := os.WriteFile(report, xlsx, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				opts.logger.Info("batch report written", "path", report)
			}
			_, _ = okColor.Fprintf(cmd.OutOrStdout(), "%d processed, %d failed\n", len(rows)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(rows))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to scan for PDFs")
	cmd.Flags().StringVarP(&report, "report", "r", "", "write an XLSX batch report to this path")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker count (default WORKERS)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and dot directories")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newProgressBar(total int64, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
