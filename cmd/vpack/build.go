package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vpack/internal/build"
	"github.com/vango-dev/vpack/internal/config"
	"github.com/vango-dev/vpack/internal/errors"
)

func buildCmd() *cobra.Command {
	var (
		mode     string
		output   string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the bundle",
		Long: `Build every entry and write the assets to the output directory.

The build fails when any module cannot be resolved or
transformed. Every error is printed and nothing is written.

Examples:
  vpack build
  vpack build --mode=production
  vpack build --output=public
  vpack build --json > report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonMode {
				return runBuildJSON(cmd.OutOrStdout(), mode, output)
			}
			return runBuild(mode, output)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Build mode: development or production (default from vpack.json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from vpack.json)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print a JSON build report on stdout instead of progress output")

	return cmd
}

// loadConfig loads vpack.json and applies command-line overrides.
func loadConfig(mode string) (*config.Config, error) {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return nil, err
	}
	if mode != "" {
		cfg.Mode = mode
	}
	return cfg, nil
}

func runBuild(mode, output string) error {
	cfg, err := loadConfig(mode)
	if err != nil {
		return report(err)
	}
	if output != "" {
		cfg.Output.Path = output
	}

	fmt.Printf("  Building for %s...\n", cfg.Mode)
	fmt.Println()

	builder, err := build.New(cfg, build.Options{
		OnProgress: func(step string) {
			info("%s", step)
		},
	})
	if err != nil {
		return report(err)
	}

	// Handle signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := builder.Build(ctx, nil)
	if err != nil {
		fmt.Println()
		diags := c.Diagnostics()
		if len(diags) == 0 {
			diags = errors.Collect(err)
		}
		for _, d := range diags {
			fmt.Fprint(os.Stderr, d.Format())
		}
		errorMsg("Build failed with %d error(s)", len(diags))
		return errReported
	}

	fmt.Println()
	success("Build complete in %s", c.Duration.Round(time.Millisecond))
	fmt.Println()
	info("%d modules, %d transformed, %d cached", c.Stats.Modules, c.Stats.Transformed, c.Stats.Cached)
	fmt.Println()
	out, _ := filepath.Rel(cfg.Dir(), cfg.OutputPath())
	fmt.Printf("  %s/\n", filepath.ToSlash(out))
	for _, a := range c.Assets {
		fmt.Printf("    %-40s %s\n", a.Path, formatBytes(int64(len(a.Content))))
	}
	fmt.Println()

	return nil
}

// report prints err as a diagnostic and marks it printed.
func report(err error) error {
	errors.FprintError(os.Stderr, errors.FromError(err, "E500"))
	return errReported
}

// buildReport is the document printed by vpack build --json.
type buildReport struct {
	OK       bool              `json:"ok"`
	Mode     string            `json:"mode,omitempty"`
	Hash     string            `json:"hash,omitempty"`
	Duration string            `json:"duration,omitempty"`
	Modules  int               `json:"modules"`
	Assets   []assetReport     `json:"assets"`
	Errors   []json.RawMessage `json:"errors"`
}

type assetReport struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// runBuildJSON builds like runBuild but prints a single JSON document to
// w. Diagnostics are encoded with VpackError.FormatJSON.
func runBuildJSON(w io.Writer, mode, output string) error {
	rep := buildReport{Assets: []assetReport{}, Errors: []json.RawMessage{}}
	fail := func(diags []*errors.VpackError) error {
		for _, d := range diags {
			rep.Errors = append(rep.Errors, json.RawMessage(d.FormatJSON()))
		}
		if err := writeReport(w, rep); err != nil {
			return err
		}
		return errReported
	}

	cfg, err := loadConfig(mode)
	if err != nil {
		return fail(errors.Collect(err))
	}
	if output != "" {
		cfg.Output.Path = output
	}
	rep.Mode = cfg.Mode

	builder, err := build.New(cfg, build.Options{})
	if err != nil {
		return fail(errors.Collect(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := builder.Build(ctx, nil)
	if c != nil && c.Graph != nil {
		rep.Modules = c.Graph.Len()
	}
	if err != nil {
		diags := c.Diagnostics()
		if len(diags) == 0 {
			diags = errors.Collect(err)
		}
		return fail(diags)
	}

	rep.OK = true
	rep.Hash = c.Hash
	rep.Duration = c.Duration.Round(time.Millisecond).String()
	for _, a := range c.Assets {
		rep.Assets = append(rep.Assets, assetReport{Path: a.Path, Size: len(a.Content)})
	}
	return writeReport(w, rep)
}

func writeReport(w io.Writer, rep buildReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
