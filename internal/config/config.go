package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"

	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vpack.json"

	// EnvFileName is the optional environment file next to vpack.json.
	EnvFileName = ".env"

	// ModeEnv overrides the configured mode.
	ModeEnv = "VPACK_MODE"

	// DefaultPort is the default development server port.
	DefaultPort = 8080

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultFilename is the default code asset template.
	DefaultFilename = "[name].[hash].js"

	// DefaultIndex is the document served by the history fallback.
	DefaultIndex = "index.html"

	// DefaultPollInterval is how often the dev watcher scans for changes.
	DefaultPollInterval = 100 * time.Millisecond
)

// Build modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// TransformUnits are the transformer names accepted in "transform".
var TransformUnits = []string{"esbuild", "define", "inject", "size-limit"}

// Plugins are the plugin names accepted in "plugins".
var Plugins = []string{"clean", "html", "manifest", "s3"}

// Config represents the complete vpack.json configuration.
type Config struct {
	// Mode is "development" or "production".
	Mode string `json:"mode,omitempty"`

	// Entry lists the named entry points in order.
	Entry Entries `json:"entry"`

	// Output configures where and how assets are written.
	Output OutputConfig `json:"output"`

	// Resolve configures module resolution.
	Resolve ResolveConfig `json:"resolve,omitempty"`

	// Transform is the ordered transformer chain.
	Transform []UnitConfig `json:"transform,omitempty"`

	// Plugins are the output plugins, in hook order.
	Plugins []UnitConfig `json:"plugins,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty"`

	// Workers bounds parallel module processing. 0 means one per CPU.
	Workers int `json:"workers,omitempty"`

	// CacheSize bounds the transform memo. 0 means the default size and a
	// negative value disables memoization.
	CacheSize int `json:"cacheSize,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string

	// env holds the values read from .env.
	env map[string]string
}

// OutputConfig configures emitted assets.
type OutputConfig struct {
	// Path is the output directory.
	Path string `json:"path,omitempty"`

	// Filename is the code asset template ([name], [hash], [hash:N]).
	Filename string `json:"filename,omitempty"`

	// PublicPath is the URL prefix assets are served under.
	PublicPath string `json:"publicPath,omitempty"`

	// HashLength is the length of [hash].
	HashLength int `json:"hashLength,omitempty"`
}

// ResolveConfig configures module resolution.
type ResolveConfig struct {
	Extensions []string          `json:"extensions,omitempty"`
	Alias      map[string]string `json:"alias,omitempty"`
	Externals  map[string]string `json:"externals,omitempty"`
	Modules    []string          `json:"modules,omitempty"`
	MainFields []string          `json:"mainFields,omitempty"`
}

// UnitConfig names a transformer or plugin and its options.
type UnitConfig struct {
	// Use is the transformer or plugin name.
	Use string `json:"use"`

	// Test and Exclude select modules by glob. Transformers only.
	Test    []string `json:"test,omitempty"`
	Exclude []string `json:"exclude,omitempty"`

	// Options are decoded by the named transformer or plugin.
	Options json.RawMessage `json:"options,omitempty"`
}

// DecodeOptions unmarshals Options into v. Missing options leave v unchanged.
func (u UnitConfig) DecodeOptions(v any) error {
	if len(u.Options) == 0 || string(u.Options) == "null" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(u.Options)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &errors.ConfigError{Field: u.Use + ".options", Reason: err.Error()}
	}
	return nil
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty"`

	// HistoryAPIFallback serves Index for unknown extension-less paths.
	// Default: true.
	HistoryAPIFallback *bool `json:"historyApiFallback,omitempty"`

	// Overlay shows build errors in the browser. Default: on in
	// development mode, off in production mode.
	Overlay *bool `json:"overlay,omitempty"`

	// Index is the fallback document. Default: DefaultIndex.
	Index string `json:"index,omitempty"`

	// Watch contains paths to watch for changes.
	Watch []string `json:"watch,omitempty"`

	// Ignore contains glob patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty"`

	// PollInterval is the watcher scan interval, e.g. "100ms".
	PollInterval string `json:"pollInterval,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Mode: ModeDevelopment,
		Entry: Entries{
			{Name: "main", Path: "./src/index.js"},
		},
		Output: OutputConfig{
			Path:       DefaultOutput,
			Filename:   DefaultFilename,
			PublicPath: "/",
			HashLength: emit.DefaultHashLength,
		},
		Dev: DevConfig{
			Host:  DefaultHost,
			Port:  DefaultPort,
			Index: DefaultIndex,
			Watch: []string{"src"},
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for vpack.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path, then applies
// the environment and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No vpack.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'vpack init' to create one")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse vpack.json: " + err.Error()).
			WithSuggestion("Check that vpack.json is valid JSON").
			Wrap(err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New("E102").Wrap(err)
	}
	cfg.configPath = abs

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// loadEnv reads .env next to the config file and applies VPACK_MODE.
// Variables already set in the process environment win over .env.
func (c *Config) loadEnv() error {
	envPath := filepath.Join(c.Dir(), EnvFileName)
	if _, err := os.Stat(envPath); err == nil {
		env, err := godotenv.Read(envPath)
		if err != nil {
			return errors.New("E102").
				WithDetail("Failed to parse " + EnvFileName + ": " + err.Error()).
				Wrap(err)
		}
		c.env = env
	}
	if mode := c.Getenv(ModeEnv); mode != "" {
		c.Mode = mode
	}
	return nil
}

// Getenv returns a variable from the process environment, falling back to
// the project's .env file.
func (c *Config) Getenv(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return c.env[key]
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file, which is the
// project root.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}

	// Output
	if c.Output.Path == "" {
		c.Output.Path = DefaultOutput
	}
	if c.Output.Filename == "" {
		c.Output.Filename = DefaultFilename
	}
	if c.Output.PublicPath == "" {
		c.Output.PublicPath = "/"
	}
	if c.Output.HashLength == 0 {
		c.Output.HashLength = emit.DefaultHashLength
	}

	// Dev
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Index == "" {
		c.Dev.Index = DefaultIndex
	}
	if c.Dev.Watch == nil {
		c.Dev.Watch = []string{"src"}
	}
}

// Validate checks if the configuration is valid. It returns the first
// problem as a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return &errors.ConfigError{
			Field:  "mode",
			Reason: fmt.Sprintf("must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode),
		}
	}

	if len(c.Entry) == 0 {
		return &errors.ConfigError{Field: "entry", Reason: "no entry points configured", Code: "E103"}
	}
	if err := c.Entry.validate(); err != nil {
		return err
	}

	if _, err := emit.ParseTemplate(c.Output.Filename); err != nil {
		return err
	}
	if c.Output.HashLength < 0 || c.Output.HashLength > 64 {
		return &errors.ConfigError{Field: "output.hashLength", Reason: "must be between 1 and 64"}
	}
	if err := c.validateOutputPath(); err != nil {
		return err
	}

	for i, u := range c.Transform {
		field := fmt.Sprintf("transform[%d]", i)
		if !contains(TransformUnits, u.Use) {
			return &errors.ConfigError{
				Field:  field + ".use",
				Reason: fmt.Sprintf("unknown transformer %q (available: %s)", u.Use, strings.Join(TransformUnits, ", ")),
			}
		}
		if err := validatePatterns(field, append(append([]string{}, u.Test...), u.Exclude...)); err != nil {
			return err
		}
	}
	for i, p := range c.Plugins {
		if !contains(Plugins, p.Use) {
			return &errors.ConfigError{
				Field:  fmt.Sprintf("plugins[%d].use", i),
				Reason: fmt.Sprintf("unknown plugin %q (available: %s)", p.Use, strings.Join(Plugins, ", ")),
			}
		}
	}

	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return &errors.ConfigError{Field: "dev.port", Reason: "port must be between 0 and 65535"}
	}
	if err := validatePatterns("dev.ignore", c.Dev.Ignore); err != nil {
		return err
	}
	if c.Dev.PollInterval != "" {
		if d, err := time.ParseDuration(c.Dev.PollInterval); err != nil || d <= 0 {
			return &errors.ConfigError{Field: "dev.pollInterval", Reason: fmt.Sprintf("invalid duration %q", c.Dev.PollInterval)}
		}
	}

	if c.Workers < 0 {
		return &errors.ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	return nil
}

// validateOutputPath rejects output directories that would let a clean
// delete sources: the project root itself or any of its ancestors.
func (c *Config) validateOutputPath() error {
	root := c.Dir()
	if root == "" {
		return nil
	}
	out := c.OutputPath()
	rel, err := filepath.Rel(out, root)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return &errors.ConfigError{
			Field:  "output.path",
			Reason: fmt.Sprintf("%s contains the project root", out),
			Code:   "E105",
		}
	}
	return nil
}

func validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return &errors.ConfigError{Field: field, Reason: fmt.Sprintf("invalid glob %q", p)}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsProduction reports whether the build mode is production.
func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// HistoryFallback reports whether unknown routes are served the index.
func (c *Config) HistoryFallback() bool {
	return c.Dev.HistoryAPIFallback == nil || *c.Dev.HistoryAPIFallback
}

// Overlay reports whether build errors are shown in the browser.
func (c *Config) Overlay() bool {
	if c.Dev.Overlay != nil {
		return *c.Dev.Overlay
	}
	return !c.IsProduction()
}

// PollInterval returns the watcher scan interval.
func (c *Config) PollInterval() time.Duration {
	if d, err := time.ParseDuration(c.Dev.PollInterval); err == nil && d > 0 {
		return d
	}
	return DefaultPollInterval
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.abs(c.Output.Path)
}

// WatchPaths returns the absolute directories watched by the dev server.
func (c *Config) WatchPaths() []string {
	paths := make([]string, 0, len(c.Dev.Watch))
	for _, p := range c.Dev.Watch {
		paths = append(paths, c.abs(p))
	}
	return paths
}

func (c *Config) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing vpack.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No vpack.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'vpack init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
