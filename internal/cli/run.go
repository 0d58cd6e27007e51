package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockstake/lockstake/internal/harness"
)

// NewRunCommand creates the run command. It executes a scenario file against
// in-memory stores and prints the resulting trace.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its trace",
		Long:  "Run loads a scenario, deploys its instance against in-memory stores, executes every step, and prints the trace. A step whose outcome contradicts its expectation fails the run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			scenario, err := harness.LoadScenario(args[0])
			if err != nil {
				formatter.Error("INVALID_SCENARIO", err.Error(), nil)
				return WrapExitError(ExitCommandError, "load scenario", err)
			}

			formatter.VerboseLog("scenario %s: %d steps", scenario.Name, len(scenario.Steps))

			result, err := harness.Run(scenario)
			if err != nil {
				formatter.Error("SCENARIO_FAILED", err.Error(), nil)
				return WrapExitError(ExitFailure, "scenario failed", err)
			}

			if opts.Format == "json" {
				return formatter.Success(result)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scenario %s: %d steps\n", result.ScenarioName, len(result.Trace))
			for _, ev := range result.Trace {
				if ev.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  [%d] t=%d %s %s -> %s\n", ev.Seq, ev.At, ev.Invoke, ev.Caller, ev.Error)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  [%d] t=%d %s %s -> ok\n", ev.Seq, ev.At, ev.Invoke, ev.Caller)
			}
			final, err := json.MarshalIndent(result.Final, "", "  ")
			if err != nil {
				return WrapExitError(ExitCommandError, "encode final state", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "final state:\n%s\n", final)
			return nil
		},
	}
	return cmd
}
