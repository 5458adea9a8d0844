package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medorders/internal/repository"
)

func newDBHealthCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check database connectivity and print table row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.DB.HealthCheck(ctx, timeout); err != nil {
				_, _ = failColor.Fprintln(cmd.OutOrStdout(), "DB health: FAIL")
				return err
			}
			_, _ = okColor.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", a.DB.Dialect())

			for _, table := range []string{
				repository.TablePatients,
				repository.TablePrescribers,
				repository.TableDevices,
				repository.TableOrders,
				repository.TableOrderDevices,
			} {
				n, err := a.DB.CountRows(ctx, table)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %d\n", table, n)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "health check timeout")
	return cmd
}
