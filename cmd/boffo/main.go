package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"boffo/internal"
	"boffo/internal/boffo"
	"boffo/internal/config"
	"boffo/internal/folio"
	"boffo/internal/props"
)

// app holds what every subcommand shares once the root command has loaded
// configuration.
type app struct {
	configPath string
	storeName  string
	verbose    bool

	cfg      *config.Config
	store    props.Store
	metrics  *internal.Metrics
	svc      *boffo.Service
	prompter folio.Prompter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(&app{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n%s\n", err, folio.Advice(err))
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "boffo",
		Short:         "Look up FOLIO items by barcode or call number range",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !a.verbose {
				log.SetOutput(io.Discard)
			}
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("BOFFO_CONFIG"), "YAML config file")
	root.PersistentFlags().StringVar(&a.storeName, "store", "", "property store: memory, file, sqlite, redis or postgres")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(
		newBarcodesCommand(a),
		newRangeCommand(a),
		newLocationsCommand(a),
		newFieldsCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	if a.storeName != "" {
		cfg.Store = a.storeName
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg

	store, err := props.New(ctx, cfg)
	if err != nil {
		return err
	}
	a.store = store

	a.metrics = internal.NewMetrics()
	svc, err := boffo.NewFromConfig(cfg, store, nil, a.metrics.Folio)
	if err != nil {
		store.Close()
		return err
	}
	a.svc = svc
	if a.prompter == nil {
		a.prompter = newTerminalPrompter(os.Stdin, os.Stderr)
	}
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
