package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vpack/internal/config"
	"github.com/vango-dev/vpack/internal/errors"
)

const starterEntry = `var greeting = require("./greeting");

document.body.textContent = greeting("vpack");
`

const starterModule = `module.exports = function (name) {
  return "Hello from " + name + "!";
};
`

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a vpack.json",
		Long: `Create a vpack.json with default settings.

When the default entry does not exist, a small starter
module is written next to it.

Examples:
  vpack init
  vpack init my-app`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing vpack.json")

	return cmd
}

func runInit(dir string, force bool) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if config.Exists(dir) && !force {
		return errors.New("E501").
			WithDetail("vpack.json already exists in " + dir).
			WithSuggestion("Use --force to overwrite it")
	}

	cfg := config.New()
	if err := cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)); err != nil {
		return err
	}
	success("Created %s", config.ConfigFileName)

	entry := filepath.Join(dir, filepath.FromSlash(cfg.Entry[0].Path))
	if _, err := os.Stat(entry); os.IsNotExist(err) {
		files := map[string]string{
			entry: starterEntry,
			filepath.Join(filepath.Dir(entry), "greeting.js"): starterModule,
		}
		for path, content := range files {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return err
			}
			rel, _ := filepath.Rel(dir, path)
			success("Created %s", filepath.ToSlash(rel))
		}
	}

	fmt.Println()
	info("Next steps:")
	info("  vpack dev     start the dev server")
	info("  vpack build   build for production")
	fmt.Println()
	return nil
}
