package cli

import (
	"github.com/spf13/cobra"

	"github.com/AndreyAkinshin/conform/internal/loader"
)

// NewValidateCommand creates the validate command. It checks a suite file
// and loads its index without running anything.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate [suite-file]",
		Short:         "Check a suite file and its testcase index",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.writer(cmd)
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			suite, warnings, err := loadSuite(path, "")
			printWarnings(out, warnings)
			if err != nil {
				return err
			}
			opts, err := suite.LoaderOptions()
			if err != nil {
				return err
			}
			variations, err := loader.Load(suite.Path(suite.Index), opts)
			if err != nil {
				return err
			}

			out.ValidationSuccess("Suite %q is valid (%d variations)", suite.Name, len(variations))
			return nil
		},
	}
}
