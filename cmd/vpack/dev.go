package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vpack/internal/build"
	"github.com/vango-dev/vpack/internal/dev"
)

func devCmd() *cobra.Command {
	var (
		mode        string
		port        int
		host        string
		openBrowser bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the development server with live reload.

The dev server keeps assets in memory, rebuilds when a watched
file changes, and reloads connected browsers. While a build is
broken it keeps serving the last good assets and shows the
errors in the browser.

Examples:
  vpack dev
  vpack dev --port=3000
  vpack dev --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(mode, port, host, openBrowser, verbose)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Build mode (default from vpack.json)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from vpack.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from vpack.json)")
	cmd.Flags().BoolVarP(&openBrowser, "open", "o", false, "Open browser on start")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request and change")

	return cmd
}

func runDev(mode string, port int, host string, openBrowser, verbose bool) error {
	cfg, err := loadConfig(mode)
	if err != nil {
		return report(err)
	}

	// Apply command-line overrides
	if port > 0 {
		cfg.Dev.Port = port
	}
	if host != "" {
		cfg.Dev.Host = host
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Build and HTTP metrics share one registry served on /metrics.
	registry := prometheus.NewRegistry()

	builder, err := build.New(cfg, build.Options{
		InMemory: true,
		Logger:   logger,
		Registry: registry,
	})
	if err != nil {
		return report(err)
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()

	server := dev.NewServer(dev.ServerOptions{
		Config:   cfg,
		Builder:  builder,
		Logger:   logger,
		Registry: registry,
		OnBuildStart: func() {
			info("Building...")
		},
		OnBuildComplete: func(c *build.Compilation) {
			if c.Succeeded() {
				success("Built %d modules in %s", c.Stats.Modules, c.Duration.Round(time.Millisecond))
				return
			}
			for _, d := range c.Diagnostics() {
				errorMsg("%s", d.FormatCompact())
			}
			warn("Serving the last good build")
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if openBrowser {
		go func() {
			for server.Addr() == "" {
				select {
				case <-ctx.Done():
					return
				case <-time.After(50 * time.Millisecond):
				}
			}
			success("Listening on %s", cfg.DevURL())
			openURL(cfg.DevURL())
		}()
	} else {
		info("Listening on %s", cfg.DevURL())
	}

	if err := server.Start(ctx); err != nil {
		return report(err)
	}
	fmt.Println("\n  Shutting down...")
	return nil
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		if !commandExists("xdg-open") {
			return
		}
		cmd = exec.Command("xdg-open", url)
	}

	cmd.Start()
}

// commandExists checks if a command exists in PATH.
func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
