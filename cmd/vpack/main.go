package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦  ╦┌─┐┌─┐┌─┐┬┌─
  ╚╗╔╝├─┘├─┤│  ├┴┐
   ╚╝ ┴  ┴ ┴└─┘┴ ┴
`

// errReported means the failure was already printed.
var errReported = errors.New("reported")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vpack",
		Short: "A module bundler for JavaScript applications",
		Long: `vpack bundles JavaScript modules into hashed assets.

It resolves every import starting at the configured entries,
runs the transform chain over each module once, and writes one
chunk per entry. The dev server rebuilds on change and reloads
connected browsers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		initCmd(),
		buildCmd(),
		devCmd(),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the vpack ASCII art banner.
func printBanner() {
	fmt.Print(color.CyanString(banner))
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}
