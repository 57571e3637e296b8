package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/index"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/summary"
)

// NewKeysCommand lists keys by prefix.
func NewKeysCommand(opts *RootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List keys, optionally under a prefix",
		Long: `List stored keys in ascending order.

Examples:
  telemetryctl keys --prefix event:
  telemetryctl keys --prefix loc:ACX: --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st kv.Store) error {
				keys, err := st.List(ctx, prefix)
				if err != nil {
					return err
				}
				return writeLines(cmd.OutOrStdout(), opts.Format, keys)
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix")
	return cmd
}

// NewGetCommand prints one value.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st kv.Store) error {
				b, err := st.Get(ctx, args[0])
				if errors.Is(err, kv.ErrNotFound) {
					return fmt.Errorf("key %q not found", args[0])
				}
				if err != nil {
					return err
				}
				var out bytes.Buffer
				if json.Indent(&out, b, "", "  ") != nil {
					out.Reset()
					out.Write(b)
				}
				out.WriteByte('\n')
				_, err = cmd.OutOrStdout().Write(out.Bytes())
				return err
			})
		},
	}
}

// NewIndexCommand prints the global index, or one location's index.
func NewIndexCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index [account location]",
		Short: "Print an index, newest first",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expects no arguments or <account> <location>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := index.GlobalKey
			if len(args) == 2 {
				key = index.LocationIndexKey(args[0], args[1])
			}
			return withStore(cmd, opts, func(ctx context.Context, st kv.Store) error {
				keys, err := index.Load(ctx, st, key)
				if err != nil {
					return err
				}
				return writeLines(cmd.OutOrStdout(), opts.Format, keys)
			})
		},
	}
}

// NewSummariesCommand prints every stored summary of an account, read key by key
// rather than through the location list.
func NewSummariesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summaries <account>",
		Short: "Print the per-location summaries of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st kv.Store) error {
				keys, err := st.List(ctx, index.SummaryPrefixFor(args[0]))
				if err != nil {
					return err
				}
				out := make([]models.LocationSummary, 0, len(keys))
				for _, k := range keys {
					b, err := st.Get(ctx, k)
					if err != nil {
						return fmt.Errorf("read %s: %w", k, err)
					}
					var s models.LocationSummary
					if err := json.Unmarshal(b, &s); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipping unreadable %s: %v\n", k, err)
						continue
					}
					out = append(out, s)
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), out)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LOCATION\tINTEGRITY\tUPTIME\tCONTACT\tLAST_SEEN")
				for _, s := range out {
					fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\n", s.Location, s.Integrity, s.Uptime, s.ContactID, s.LastSeen)
				}
				return tw.Flush()
			})
		},
	}
}

// NewLocationsCommand prints an account's location list.
func NewLocationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locations <account>",
		Short: "Print the location list of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st kv.Store) error {
				list, _, err := summary.LoadList(ctx, st, args[0])
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					if list == nil {
						list = []models.LocationListEntry{}
					}
					return writeJSON(cmd.OutOrStdout(), list)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LOCATION\tINTEGRITY\tUPTIME\tRESPONSE_MS\tLAST_SEEN")
				for _, l := range list {
					fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%s\n", l.Location, l.Integrity, l.Uptime, l.ResponseMS, l.LastSeen)
				}
				return tw.Flush()
			})
		},
	}
}
