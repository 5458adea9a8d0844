package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medorders/internal/ingest"
)

func newParseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Extract an order from a PDF and print it without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := ingest.ReadDocument(args[0], a.Pipeline.Config().MaxDocumentBytes)
			if err != nil {
				return err
			}
			parsed, err := a.Pipeline.Extract(cmd.Context(), doc.Data, doc.Filename)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), parsed)
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract and save orders from one or more PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			limit := a.Pipeline.Config().MaxDocumentBytes
			failed := 0
			for _, path := range args {
				doc, err := ingest.ReadDocument(path, limit)
				if err == nil {
					processed, perr := a.Pipeline.ExtractAndPersist(cmd.Context(), doc.Data, doc.Filename)
					if perr == nil {
						if asJSON {
							if err := printJSON(cmd.OutOrStdout(), processed); err != nil {
								return err
							}
						} else {
							printResult(cmd.OutOrStdout(), doc.Filename, processed.Result)
						}
						continue
					}
					err = perr
				}
				failed++
				printFailure(cmd.ErrOrStderr(), path, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}
