package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		since string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored orders to an XLSX workbook",
		Example: `  orderctl export --since 72h -o recent.xlsx
  orderctl export --since 2026-01-01T00:00:00Z -o january.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			xlsx, err := a.Export.OrdersXLSX(cmd.Context(), from)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, xlsx, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, _ = okColor.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "RFC 3339 time or a duration before now; empty exports everything")
	cmd.Flags().StringVarP(&out, "out", "o", "orders.xlsx", "output path")
	return cmd
}

// parseSince accepts an RFC 3339 timestamp or a Go duration counted back from now.
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("--since %q is neither an RFC 3339 time nor a positive duration", v)
	}
	return now.Add(-d), nil
}
