package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockstake/lockstake/internal/config"
)

// NewValidateCommand creates the validate command. It loads an instance file
// and reports schema violations without touching any store.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <instance.yaml>",
		Short: "Validate an instance file",
		Long:  "Validate decodes an instance file and checks it against the instance schema. Nothing is deployed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			inst, err := config.Load(args[0])
			if err != nil {
				formatter.Error("INVALID_CONFIG", err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid instance", err)
			}

			formatter.VerboseLog("instance %s: variant=%s", args[0], inst.Variant)
			summary := map[string]any{
				"file":    args[0],
				"variant": inst.Variant,
				"staked":  inst.Stake != nil,
			}
			if opts.Format == "json" {
				return formatter.Success(summary)
			}
			return formatter.Success(fmt.Sprintf("%s: valid %s instance", args[0], inst.Variant))
		},
	}
	return cmd
}
