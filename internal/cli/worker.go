package cli

import (
	"github.com/spf13/cobra"

	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/scheduler"
)

// NewWorkerCommand creates the hidden command a parallel run starts once per
// variation. It reads one task from stdin and writes the reply to stdout.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           scheduler.WorkerCommand,
		Short:         "Run one variation for a parallel run",
		Hidden:        true,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := rootOpts.logger(cmd)
			if err != nil {
				return err
			}
			err = scheduler.ServeWorker(cmd.Context(), engine.DefaultRegistry(), cmd.InOrStdin(), cmd.OutOrStdout(), log)
			if err != nil {
				return conformerrors.Wrap(err, "worker failed")
			}
			return nil
		},
	}
}
