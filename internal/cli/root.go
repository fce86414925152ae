// Package cli implements the wqguard command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hed1ad/wqguard/internal/config"
	"github.com/hed1ad/wqguard/pkg/pipeline"
	"github.com/hed1ad/wqguard/pkg/registry"
	"github.com/hed1ad/wqguard/pkg/water"
)

// app holds flags and state shared by every subcommand.
type app struct {
	cfgFile   string
	modelsDir string
	variant   string
	strict    bool

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand builds the command tree. Logs go to logOut.
func NewRootCommand(logOut io.Writer) *cobra.Command {
	a := &app{logger: log.New(logOut, "wqguard ", log.LstdFlags)}

	root := &cobra.Command{
		Use:   "wqguard",
		Short: "Detect anomalies in water-quality sensor readings",
		Long: `wqguard scores uploaded water-quality samples (pH, flow rate, water level,
turbidity, temperature) with pre-trained Isolation Forest models and reports
which samples look anomalous.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ./wqguard.yaml or ~/.wqguard/wqguard.yaml)")
	f.StringVar(&a.modelsDir, "models", "", "directory holding model artifacts (overrides config)")
	f.StringVar(&a.variant, "variant", "", "model variant: auto, per_parameter or joint (overrides config)")
	f.BoolVar(&a.strict, "strict", false, "accept canonical column names only")

	root.AddCommand(
		a.newDetectCommand(),
		a.newServeCommand(),
		a.newModelsCommand(),
		a.newConfigCommand(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("models") {
		c.Models.Source = "file"
		c.Models.Dir = a.modelsDir
	}
	if f.Changed("variant") {
		c.Models.Variant = a.variant
	}
	if f.Changed("strict") {
		c.Normalize.Aliases = !a.strict
	}
	if err := c.Validate(); err != nil {
		return err
	}
	a.cfg = c
	return nil
}

func (a *app) source() (registry.Source, error) {
	m := a.cfg.Models
	if m.Source == "s3" {
		return registry.NewS3Source(registry.S3Config{
			Endpoint:  m.S3.Endpoint,
			Bucket:    m.S3.Bucket,
			Prefix:    m.S3.Prefix,
			AccessKey: m.S3.AccessKey,
			SecretKey: m.S3.SecretKey,
			Secure:    m.S3.Secure,
		})
	}
	return registry.NewFileSource(m.Dir), nil
}

// loadRegistry loads every artifact up front. Its error is fatal for the
// calling command.
func (a *app) loadRegistry(ctx context.Context) (*registry.Registry, error) {
	src, err := a.source()
	if err != nil {
		return nil, err
	}
	sel, err := registry.ParseSelection(a.cfg.Models.Variant)
	if err != nil {
		return nil, err
	}
	return registry.Load(ctx, src, registry.Options{Selection: sel, Logger: a.logger})
}

func (a *app) pipeline(models *registry.Registry, metrics *pipeline.Metrics) *pipeline.Pipeline {
	mode := water.AliasMode
	if !a.cfg.Normalize.Aliases {
		mode = water.StrictMode
	}
	return pipeline.New(models, pipeline.Options{
		Mode:        mode,
		PreviewRows: a.cfg.Report.PreviewRows,
		Logger:      a.logger,
		Metrics:     metrics,
	})
}
