package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// esbuildModule is the module path reported as the transform engine.
const esbuildModule = "github.com/evanw/esbuild"

type versionInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Built    string `json:"built"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
	ESBuild  string `json:"esbuild,omitempty"`
}

func currentVersion() versionInfo {
	v := versionInfo{
		Version:  version,
		Commit:   commit,
		Built:    date,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == esbuildModule {
				v.ESBuild = dep.Version
			}
		}
	}
	return v
}

func versionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the vpack version, the esbuild release used for transforms,
and how the binary was built.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd.OutOrStdout(), currentVersion(), short, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON")

	return cmd
}

func printVersion(w io.Writer, v versionInfo, short, asJSON bool) error {
	switch {
	case short:
		_, err := fmt.Fprintln(w, v.Version)
		return err
	case asJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	engine := v.ESBuild
	if engine == "" {
		engine = "unknown"
	}
	_, err := fmt.Fprintf(w, "vpack %s (%s, built %s)\n  esbuild  %s\n  go       %s %s\n",
		v.Version, v.Commit, v.Built, engine, v.Go, v.Platform)
	return err
}
