package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	wqio "github.com/hed1ad/wqguard/pkg/io"
	"github.com/hed1ad/wqguard/pkg/io/csv"
)

func (a *app) newDetectCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "detect <file.csv>",
		Short: "Score a CSV of sensor readings and report anomalies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := resultWriter(format, io.Discard); err != nil {
				return err
			}

			models, err := a.loadRegistry(ctx)
			if err != nil {
				return err
			}

			r, err := csv.Open(args[0])
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer r.Close()

			raw, err := r.ReadTable()
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			res, err := a.pipeline(models, nil).Run(ctx, raw)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			w, err := resultWriter(format, out)
			if err != nil {
				return err
			}
			if err := w.Write(res); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to a file instead of stdout")
	return cmd
}

func resultWriter(format string, w io.Writer) (wqio.Writer, error) {
	switch format {
	case "text":
		return wqio.NewTextWriter(w), nil
	case "json":
		return wqio.NewJSONWriter(w, true), nil
	case "csv":
		return csv.NewResultWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use text, json or csv)", format)
	}
}
