package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medorders/internal/async"
	"github.com/joseph-ayodele/medorders/internal/ingest"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		dir      string
		workers  int
		existing bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process PDFs as they appear in a directory until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if dir == "" {
				dir = opts.cfg.Ingest.InboxDir
			}
			if workers <= 0 {
				workers = opts.cfg.Ingest.Workers
			}
			a, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			q := async.NewProcessorQueue(a.Pipeline, opts.logger,
				async.WithWorkers(workers),
				async.WithMaxDocumentBytes(a.Pipeline.Config().MaxDocumentBytes),
				async.WithResultHandler(func(o async.Outcome) {
					if o.Err != nil {
						printFailure(cmd.ErrOrStderr(), o.Job.Path, o.Err)
						return
					}
					printResult(out, o.Job.Path, o.Processed.Result)
				}),
			)
			defer q.Shutdown(context.Background())

			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       []string{dir},
				InitialScan: existing,
				Debounce:    500 * time.Millisecond,
				SkipHidden:  true,
			}, opts.logger)
			if err != nil {
				return err
			}
			opts.logger.Info("watching for documents", "dir", dir)

			for {
				select {
				case <-ctx.Done():
					return nil
				case path, ok := <-events:
					if !ok {
						return nil
					}
					if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
						opts.logger.Warn("failed to queue document", "path", path, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					opts.logger.Warn("watcher error", "error", err)
				}
			}
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to watch (default INBOX_DIR)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker count (default WORKERS)")
	cmd.Flags().BoolVar(&existing, "existing", false, "also process PDFs already in the directory")
	return cmd
}
