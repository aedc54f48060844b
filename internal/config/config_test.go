package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/vpack/internal/errors"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Mode != ModeDevelopment {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeDevelopment)
	}
	if cfg.Dev.Port != DefaultPort {
		t.Errorf("Dev.Port = %d, want %d", cfg.Dev.Port, DefaultPort)
	}
	if cfg.Dev.Host != DefaultHost {
		t.Errorf("Dev.Host = %q, want %q", cfg.Dev.Host, DefaultHost)
	}
	if cfg.Output.Path != DefaultOutput {
		t.Errorf("Output.Path = %q, want %q", cfg.Output.Path, DefaultOutput)
	}
	if cfg.Output.Filename != DefaultFilename {
		t.Errorf("Output.Filename = %q, want %q", cfg.Output.Filename, DefaultFilename)
	}
	if len(cfg.Entry) != 1 || cfg.Entry[0].Name != "main" {
		t.Errorf("Entry = %v, want a single main entry", cfg.Entry)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(ModeEnv, "")
	os.Unsetenv(ModeEnv)
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Error("Expected error for missing config")
	}
	if !strings.Contains(err.Error(), "E101") {
		t.Errorf("Expected E101 error, got: %v", err)
	}

	writeConfig(t, tmpDir, `{
  "mode": "production",
  "entry": {"main": "./src/index.js", "admin": "./src/admin.js"},
  "output": {
    "path": "build",
    "filename": "js/[name].[hash:6].js",
    "publicPath": "/static/"
  },
  "resolve": {
    "extensions": [".js", ".jsx"],
    "externals": {"react": "React"}
  },
  "transform": [
    {"use": "esbuild", "test": ["**/*.js"], "exclude": ["node_modules/**"], "options": {"target": "es2017"}}
  ],
  "plugins": [{"use": "clean"}, {"use": "html"}],
  "dev": {
    "port": 9000,
    "host": "0.0.0.0",
    "historyApiFallback": false
  }
}
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if cfg.Mode != ModeProduction {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeProduction)
	}
	if got := strings.Join(cfg.Entry.Names(), ","); got != "main,admin" {
		t.Errorf("Entry names = %q, want main,admin", got)
	}
	if cfg.Output.Filename != "js/[name].[hash:6].js" {
		t.Errorf("Output.Filename = %q", cfg.Output.Filename)
	}
	if cfg.Output.HashLength != 8 {
		t.Errorf("Output.HashLength = %d, want default 8", cfg.Output.HashLength)
	}
	if cfg.Resolve.Externals["react"] != "React" {
		t.Errorf("Resolve.Externals = %v", cfg.Resolve.Externals)
	}
	if len(cfg.Transform) != 1 || cfg.Transform[0].Use != "esbuild" {
		t.Fatalf("Transform = %+v", cfg.Transform)
	}
	var opts struct {
		Target string `json:"target"`
	}
	if err := cfg.Transform[0].DecodeOptions(&opts); err != nil || opts.Target != "es2017" {
		t.Errorf("DecodeOptions = %+v, %v", opts, err)
	}
	if cfg.Dev.Port != 9000 || cfg.Dev.Host != "0.0.0.0" {
		t.Errorf("Dev = %+v", cfg.Dev)
	}
	if cfg.HistoryFallback() {
		t.Error("HistoryFallback should be false")
	}
	if cfg.Overlay() {
		t.Error("Overlay should default to false in production mode")
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir = %q, want %q", cfg.Dir(), tmpDir)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, "not valid json")

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "E102") {
		t.Errorf("Expected E102 error, got: %v", err)
	}
}

func TestModePrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, `{"mode": "production", "entry": "./a.js"}`)

	t.Run("file", func(t *testing.T) {
		t.Setenv(ModeEnv, "")
		os.Unsetenv(ModeEnv)
		cfg, err := LoadFile(configPath)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Mode != ModeProduction {
			t.Errorf("Mode = %q, want production", cfg.Mode)
		}
	})

	t.Run("dotenv overrides file", func(t *testing.T) {
		t.Setenv(ModeEnv, "")
		os.Unsetenv(ModeEnv)
		envPath := filepath.Join(tmpDir, EnvFileName)
		if err := os.WriteFile(envPath, []byte("VPACK_MODE=development\nAPI_TOKEN=secret\n"), 0644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(envPath)

		cfg, err := LoadFile(configPath)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Mode != ModeDevelopment {
			t.Errorf("Mode = %q, want development", cfg.Mode)
		}
		if cfg.Getenv("API_TOKEN") != "secret" {
			t.Errorf("Getenv(API_TOKEN) = %q", cfg.Getenv("API_TOKEN"))
		}
		if _, ok := os.LookupEnv("API_TOKEN"); ok {
			t.Error(".env values must not leak into the process environment")
		}
	})

	t.Run("process env overrides dotenv", func(t *testing.T) {
		envPath := filepath.Join(tmpDir, EnvFileName)
		if err := os.WriteFile(envPath, []byte("VPACK_MODE=development\n"), 0644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(envPath)
		t.Setenv(ModeEnv, ModeProduction)

		cfg, err := LoadFile(configPath)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Mode != ModeProduction {
			t.Errorf("Mode = %q, want production", cfg.Mode)
		}
	})
}

func TestSave(t *testing.T) {
	t.Setenv(ModeEnv, "")
	os.Unsetenv(ModeEnv)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Dev.Port = 9000
	cfg.Entry = Entries{{Name: "b", Path: "./b.js"}, {Name: "a", Path: "./a.js"}}

	// Save should fail without configPath set
	if err := cfg.Save(); err == nil {
		t.Error("Expected error when saving without path")
	}

	// SaveTo should work
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	// Reload and verify
	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Dev.Port != 9000 {
		t.Errorf("Dev.Port = %d, want %d", loaded.Dev.Port, 9000)
	}
	if got := strings.Join(loaded.Entry.Names(), ","); got != "b,a" {
		t.Errorf("entry order = %q, want b,a", got)
	}

	// Now Save should work
	loaded.Dev.Port = 9001
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Dev.Port != 9001 {
		t.Errorf("Dev.Port = %d, want %d", reloaded.Dev.Port, 9001)
	}
}

func TestValidate(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
		code   string
	}{
		{"valid", func(*Config) {}, "", ""},
		{"bad mode", func(c *Config) { c.Mode = "staging" }, "mode", "E100"},
		{"no entries", func(c *Config) { c.Entry = nil }, "entry", "E103"},
		{"empty entry path", func(c *Config) { c.Entry = Entries{{Name: "main"}} }, "entry[0]", "E100"},
		{"duplicate entry", func(c *Config) {
			c.Entry = Entries{{Name: "a", Path: "./a.js"}, {Name: "a", Path: "./b.js"}}
		}, "entry[1]", "E100"},
		{"escaping entry name", func(c *Config) { c.Entry = Entries{{Name: "../x", Path: "./a.js"}} }, "entry[0]", "E100"},
		{"bad template", func(c *Config) { c.Output.Filename = "[name].[contenthash].js" }, "output.filename", "E104"},
		{"output is root", func(c *Config) { c.Output.Path = "." }, "output.path", "E105"},
		{"output contains root", func(c *Config) { c.Output.Path = ".." }, "output.path", "E105"},
		{"unknown transformer", func(c *Config) { c.Transform = []UnitConfig{{Use: "babel"}} }, "transform[0].use", "E100"},
		{"bad glob", func(c *Config) {
			c.Transform = []UnitConfig{{Use: "esbuild", Test: []string{"[a"}}}
		}, "transform[0]", "E100"},
		{"unknown plugin", func(c *Config) { c.Plugins = []UnitConfig{{Use: "copy"}} }, "plugins[0].use", "E100"},
		{"negative port", func(c *Config) { c.Dev.Port = -1 }, "dev.port", "E100"},
		{"port too large", func(c *Config) { c.Dev.Port = 70000 }, "dev.port", "E100"},
		{"bad poll interval", func(c *Config) { c.Dev.PollInterval = "soon" }, "dev.pollInterval", "E100"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers", "E100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.configPath = configPath
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var ce *errors.ConfigError
			if !stderrors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *errors.ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
			if got := ce.Diagnostic().Code; got != tt.code {
				t.Errorf("Code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestDevAddress(t *testing.T) {
	cfg := New()
	cfg.Dev.Port = 8080
	cfg.Dev.Host = "0.0.0.0"

	if addr := cfg.DevAddress(); addr != "0.0.0.0:8080" {
		t.Errorf("DevAddress = %q, want %q", addr, "0.0.0.0:8080")
	}
	if url := New().DevURL(); url != "http://localhost:8080" {
		t.Errorf("DevURL = %q, want %q", url, "http://localhost:8080")
	}
}

func TestPaths(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}

	if got := cfg.OutputPath(); got != filepath.Join(tmpDir, "dist") {
		t.Errorf("OutputPath = %q, want %q", got, filepath.Join(tmpDir, "dist"))
	}
	if got := cfg.WatchPaths(); len(got) != 1 || got[0] != filepath.Join(tmpDir, "src") {
		t.Errorf("WatchPaths = %v", got)
	}

	cfg.Output.Path = "/absolute/path"
	if got := cfg.OutputPath(); got != "/absolute/path" {
		t.Errorf("OutputPath absolute = %q, want %q", got, "/absolute/path")
	}
}

func TestOverlay(t *testing.T) {
	cfg := New()
	if !cfg.Overlay() {
		t.Error("Overlay should default to true in development mode")
	}

	cfg.Mode = ModeProduction
	if cfg.Overlay() {
		t.Error("Overlay should default to false in production mode")
	}

	on := true
	cfg.Dev.Overlay = &on
	if !cfg.Overlay() {
		t.Error("explicit overlay setting should win over the mode")
	}
}

func TestPollInterval(t *testing.T) {
	cfg := New()
	if got := cfg.PollInterval(); got != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", got, DefaultPollInterval)
	}
	cfg.Dev.PollInterval = "250ms"
	if got := cfg.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", got)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	writeConfig(t, tmpDir, "{}")

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	// Create nested directory structure
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	if _, err := FindProjectRoot(nestedDir); err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	writeConfig(t, tmpDir, "{}")

	// Should find root from nested directory
	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}

	// Should find root from middle directory
	root, err = FindProjectRoot(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Mode != ModeDevelopment {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeDevelopment)
	}
	if cfg.Dev.Port != DefaultPort {
		t.Errorf("Dev.Port = %d, want %d", cfg.Dev.Port, DefaultPort)
	}
	if cfg.Dev.Index != DefaultIndex {
		t.Errorf("Dev.Index = %q, want %q", cfg.Dev.Index, DefaultIndex)
	}
	if cfg.Output.Path != DefaultOutput {
		t.Errorf("Output.Path = %q, want %q", cfg.Output.Path, DefaultOutput)
	}
	if cfg.Output.PublicPath != "/" {
		t.Errorf("Output.PublicPath = %q, want /", cfg.Output.PublicPath)
	}
	if len(cfg.Entry) != 0 {
		t.Errorf("Entry = %v, want none", cfg.Entry)
	}
}
