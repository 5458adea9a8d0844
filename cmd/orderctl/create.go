package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medorders/internal/entity"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save an order from a JSON order request",
		Long: `create reads an order request and saves it. The request names the
patient and prescriber either by id (patient_id, prescriber_id) or by
draft (patient, prescriber), and lists devices either as device_ids or
as device drafts.`,
		Example: `  orderctl create -f order.json
  cat order.json | orderctl create -f -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			var req entity.OrderRequest
			dec := json.NewDecoder(r)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return fmt.Errorf("decode order request: %w", err)
			}

			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.CreateOrder(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "order request JSON file, - for stdin")
	return cmd
}
