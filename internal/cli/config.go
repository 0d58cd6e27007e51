package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockstake/lockstake/internal/ledger"
)

// NewConfigCommand creates the config command. It prints the configuration
// snapshot persisted in a store, vault or stake alike: both keep a single
// JSON blob in the same table.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <store.db>",
		Short: "Show the configuration persisted in a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			if _, err := os.Stat(args[0]); os.IsNotExist(err) {
				formatter.Error("STORAGE", fmt.Sprintf("store not found: %s", args[0]), nil)
				return NewExitError(ExitCommandError, "store not found")
			}

			store, err := ledger.Open(args[0])
			if err != nil {
				formatter.Error("STORAGE", err.Error(), nil)
				return WrapExitError(ExitCommandError, "open store", err)
			}
			defer store.Close()

			var cfg map[string]any
			ok, err := store.LoadConfig(cmd.Context(), &cfg)
			if err != nil {
				formatter.Error("STORAGE", err.Error(), nil)
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if !ok {
				formatter.Error("NOT_FOUND", "store holds no configuration", nil)
				return NewExitError(ExitFailure, "store holds no configuration")
			}

			if opts.Format == "json" {
				return formatter.Success(cfg)
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return WrapExitError(ExitCommandError, "encode config", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}
