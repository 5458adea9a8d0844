package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medorders/internal/app"
	"github.com/joseph-ayodele/medorders/internal/common"
)

type rootOptions struct {
	cfgFile  string
	envFile  string
	verbose  bool
	noColor  bool
	inMemory bool

	cfg    *common.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "orderctl",
		Short: "Extract, persist and report medical device orders",
		Long: `orderctl turns prescription PDFs into stored orders: it acquires the
document text (native or OCR), asks a local Ollama model for the order
fields, resolves patients, prescribers and devices by natural key and
reports possible duplicate orders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "YAML config file (overrides MEDORDERS_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load if present")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().BoolVar(&opts.inMemory, "inmem", false, "use a throwaway in-memory database instead of DB_URL")

	cmd.AddCommand(
		newParseCmd(opts),
		newIngestCmd(opts),
		newBatchCmd(opts),
		newCreateCmd(opts),
		newWatchCmd(opts),
		newExportCmd(opts),
		newDBHealthCmd(opts),
	)
	return cmd
}

func (o *rootOptions) init() error {
	if o.noColor {
		color.NoColor = true
	}
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("failed to load env file", "path", o.envFile, "error", err)
		}
	}
	if o.cfgFile != "" {
		if err := os.Setenv("MEDORDERS_CONFIG", o.cfgFile); err != nil {
			return err
		}
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) app(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, o.cfg, app.Options{InMemory: o.inMemory}, o.logger)
}
