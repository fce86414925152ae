package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Load the configured models and list them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := a.loadRegistry(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "variant: %s\n\n", models.Variant())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ARTIFACT\tPARAMETER\tFEATURES\tLOCATION")
			for _, art := range models.Artifacts() {
				param := art.Parameter
				if param == "" {
					param = "(all)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", art.Name, param, art.NumFeatures, art.Location)
			}
			return tw.Flush()
		},
	}
}
