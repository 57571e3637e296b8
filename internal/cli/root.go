// Package cli implements telemetryctl, an offline inspector for the key-value layout
// written by the ingestion service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
)

// Opener returns the store a command reads from.
type Opener func(ctx context.Context) (kv.Store, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Open   Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// OpenFromConfig opens the store described by CONFIG_FILE and the environment.
// Every call on it is bounded by STORE_TIMEOUT.
func OpenFromConfig(ctx context.Context) (kv.Store, error) {
	cfg, err := config.LoadStore()
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg)
}

func openStore(ctx context.Context, cfg config.Config) (kv.Store, error) {
	st, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return kv.Wrap(st, cfg.StoreTimeout, nil), nil
}

// NewRootCommand creates the root command. A nil open uses OpenFromConfig.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenFromConfig
	}
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "telemetryctl",
		Short: "Inspect the telemetry key-value store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewLocationsCommand(opts))
	cmd.AddCommand(NewSummariesCommand(opts))
	return cmd
}

// withStore opens the store for the duration of fn.
func withStore(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, st kv.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := opts.Open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(ctx, st)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeLines prints one entry per line, or a JSON array.
func writeLines(w io.Writer, format string, lines []string) error {
	if format == "json" {
		if lines == nil {
			lines = []string{}
		}
		return writeJSON(w, lines)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
