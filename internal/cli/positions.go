package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/types"
)

// NewPositionsCommand creates the positions command. It opens a vault store
// directly and lists active positions, optionally filtered.
func NewPositionsCommand(opts *RootOptions) *cobra.Command {
	var owner string
	var collection string

	cmd := &cobra.Command{
		Use:   "positions <store.db>",
		Short: "List active lockup positions in a vault store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			if owner != "" && collection != "" {
				return NewExitError(ExitCommandError, "--owner and --collection are mutually exclusive")
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

			ctx := cmd.Context()
			var positions []ledger.Position
			switch {
			case owner != "":
				positions, err = store.PositionsByOwner(ctx, types.Principal(owner))
			case collection != "":
				positions, err = store.PositionsByCollection(ctx, types.Principal(collection))
			default:
				positions, err = store.AllPositions(ctx)
			}
			if err != nil {
				formatter.Error("STORAGE", err.Error(), nil)
				return WrapExitError(ExitCommandError, "read positions", err)
			}

			if opts.Format == "json" {
				rows := make([]map[string]any, len(positions))
				for i, pos := range positions {
					rows[i] = positionRow(pos)
				}
				return formatter.Success(map[string]any{"count": len(rows), "positions": rows})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d position(s)\n", len(positions))
			for _, pos := range positions {
				if pos.Collection != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s owner=%s locked_until=%s\n", pos.Key, pos.Owner, pos.LockedUntil)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s amount=%s locked_until=%s\n", pos.Key, pos.Amount, pos.LockedUntil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner principal")
	cmd.Flags().StringVar(&collection, "collection", "", "filter by collection principal")
	return cmd
}

func positionRow(pos ledger.Position) map[string]any {
	row := map[string]any{
		"key":          pos.Key,
		"owner":        pos.Owner.String(),
		"amount":       uint64(pos.Amount),
		"locked_since": pos.LockedSince.Seconds(),
		"locked_until": pos.LockedUntil.Seconds(),
	}
	if pos.Collection != "" {
		row["collection"] = pos.Collection.String()
		row["token_id"] = pos.TokenID
	}
	return row
}
