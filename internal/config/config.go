package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeCLI   = "cli"
	ModeStdio = "stdio"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultDPI         = 150.0
	MaxDPI             = 600.0
	DefaultProvider    = "anthropic"
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 120 * time.Second
	DefaultFontSize    = 10.0

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "FORMFILL"
)

// ErrVersionRequested is returned by LoadFromFlags when --version is given.
var ErrVersionRequested = errors.New("version requested")

// defaultModels is the vision model used for each provider when --model is not given.
var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-20250514",
	"openai":    "gpt-4o",
	"ollama":    "llava",
	"mistral":   "pixtral-12b-2409",
}

// DefaultModel returns the default vision model of provider, or "" for an unknown provider.
func DefaultModel(provider string) string {
	return defaultModels[strings.ToLower(provider)]
}

// Config holds all configuration for a form filling run
type Config struct {
	// Run mode
	Mode string // "cli" or "stdio"

	// Input document (cli mode)
	PDFPath string

	// Field data sources; exactly one is used in cli mode
	JSONPath   string
	DataString string
	CSVPath    string

	// Rendering and output
	DPI            float64
	PreviewPath    string
	OutputPath     string
	PreviewOnly    bool
	NoLabels       bool
	Interactive    bool
	ShowConfidence bool
	FontSize       float64

	// Planning
	Hint        string
	TextHints   bool
	OCRHints    bool
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Workers     int

	// Files reachable from stdio mode
	PDFDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:         ModeCLI,
		DPI:          DefaultDPI,
		FontSize:     DefaultFontSize,
		Provider:     DefaultProvider,
		Model:        DefaultModel(DefaultProvider),
		MaxTokens:    DefaultMaxTokens,
		Timeout:      DefaultTimeout,
		PDFDirectory: currentDir,
		Version:      "1.0.0",
		ServerName:   "pdf-formfill",
		LogLevel:     DefaultLogLevel,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	if pflag.NArg() > 0 {
		cfg.PDFPath = pflag.Arg(0)
	}

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("dpi", cfg.DPI)
	viper.SetDefault("font-size", cfg.FontSize)
	viper.SetDefault("provider", cfg.Provider)
	viper.SetDefault("max-tokens", cfg.MaxTokens)
	viper.SetDefault("timeout", cfg.Timeout)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'cli' to fill one document, 'stdio' for an MCP server on standard I/O")

	pflag.StringP("json", "j", "", "Path to a JSON (or .yaml) file containing form data")
	pflag.StringP("data", "s", "", `Form data as a string: "Name: Jane Doe, Email: jane@example.com"`)
	pflag.String("csv", "", "Path to a two-column Field,Value CSV file")

	pflag.Float64("dpi", cfg.DPI, "Rasterization resolution")
	pflag.StringP("output", "o", "", "Output PDF path (default: <input>_filled.pdf)")
	pflag.String("preview", "", "Preview image path (default: <input>_preview.png)")
	pflag.Bool("preview-only", false, "Generate the preview only, no PDF output")
	pflag.Bool("no-labels", false, "Hide field labels in the preview")
	pflag.BoolP("interactive", "i", false, "Review and adjust placements before writing")
	pflag.Bool("show-confidence", false, "Show confidence scores in the placement listing")
	pflag.Float64("font-size", cfg.FontSize, "Text size in points for stamps and preview")

	pflag.String("hint", "", "Free-text hint passed to the model with every page")
	pflag.Bool("text-hints", false, "Add words from the PDF text layer to the hint")
	pflag.Bool("ocr-hints", false, "Add OCR word boxes to the hint (requires a build with -tags ocr)")
	pflag.String("provider", cfg.Provider, "Vision model provider (anthropic, openai, ollama, mistral)")
	pflag.String("model", "", "Vision model name (default: claude-sonnet-4-20250514, gpt-4o, llava or pixtral-12b-2409 by provider)")
	pflag.String("api-key", "", "Provider API key (default: the provider's environment variable)")
	pflag.String("base-url", "", "Provider base URL override")
	pflag.Int("max-tokens", cfg.MaxTokens, "Maximum tokens per model response")
	pflag.Float64("temperature", cfg.Temperature, "Sampling temperature")
	pflag.Duration("timeout", cfg.Timeout, "Per-page model call timeout")
	pflag.Int("workers", 0, "Pages planned in parallel (default: number of CPUs)")

	pflag.String("dir", cfg.PDFDirectory, "Directory documents are confined to in stdio mode")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

var flagKeys = []string{
	"mode", "json", "data", "csv",
	"dpi", "output", "preview", "preview-only", "no-labels", "interactive", "show-confidence", "font-size",
	"hint", "text-hints", "ocr-hints", "provider", "model", "api-key", "base-url",
	"max-tokens", "temperature", "timeout", "workers",
	"dir", "loglevel", "maxfilesize",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Form Fill - place text on PDF forms by coordinates, with preview and review\n\n")
		fmt.Fprintf(os.Stderr, "  %s [options] <form.pdf>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s form.pdf -j answers.json                          # plan, preview and write\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s form.pdf -s \"Name: Jane Doe, Email: jane@x.org\"   # data as a string\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s form.pdf -j answers.json --preview-only           # preview only\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s form.pdf --csv answers.csv -i --show-confidence   # review before writing\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/forms                 # MCP server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_<OPTION>  any option, upper case with '-' as '_' (e.g. %s_MAX_TOKENS)\n", envPrefix, envPrefix)
		fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY, OPENAI_API_KEY, MISTRAL_API_KEY, OLLAMA_HOST\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")

	cfg.JSONPath = viper.GetString("json")
	cfg.DataString = viper.GetString("data")
	cfg.CSVPath = viper.GetString("csv")

	cfg.DPI = viper.GetFloat64("dpi")
	cfg.OutputPath = viper.GetString("output")
	cfg.PreviewPath = viper.GetString("preview")
	cfg.PreviewOnly = viper.GetBool("preview-only")
	cfg.NoLabels = viper.GetBool("no-labels")
	cfg.Interactive = viper.GetBool("interactive")
	cfg.ShowConfidence = viper.GetBool("show-confidence")
	cfg.FontSize = viper.GetFloat64("font-size")

	cfg.Hint = viper.GetString("hint")
	cfg.TextHints = viper.GetBool("text-hints")
	cfg.OCRHints = viper.GetBool("ocr-hints")
	cfg.Provider = strings.ToLower(viper.GetString("provider"))
	cfg.Model = viper.GetString("model")
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	cfg.APIKey = viper.GetString("api-key")
	cfg.BaseURL = viper.GetString("base-url")
	cfg.MaxTokens = viper.GetInt("max-tokens")
	cfg.Temperature = viper.GetFloat64("temperature")
	cfg.Timeout = viper.GetDuration("timeout")
	cfg.Workers = viper.GetInt("workers")

	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeCLI && c.Mode != ModeStdio {
		return errors.New("mode must be either 'cli' or 'stdio'")
	}

	if c.Mode == ModeCLI {
		if c.PDFPath == "" {
			return errors.New("a PDF file is required")
		}
		if n := c.dataSources(); n != 1 {
			return fmt.Errorf("exactly one of --json, --data or --csv is required, got %d", n)
		}
	}

	if c.DPI <= 0 || c.DPI > MaxDPI {
		return fmt.Errorf("dpi must be in (0, %.0f]", MaxDPI)
	}
	if c.FontSize <= 0 {
		return errors.New("font size must be positive")
	}

	if DefaultModel(c.Provider) == "" {
		return fmt.Errorf("invalid provider: %s (must be one of: anthropic, openai, ollama, mistral)", c.Provider)
	}
	if c.Model == "" {
		return errors.New("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}
	if c.Mode == ModeStdio {
		if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
			if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

func (c *Config) dataSources() int {
	n := 0
	for _, s := range []string{c.JSONPath, c.DataString, c.CSVPath} {
		if s != "" {
			n++
		}
	}
	return n
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsStdioMode returns true when running as an MCP server on standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsCLIMode returns true when filling a single document from the command line
func (c *Config) IsCLIMode() bool {
	return c.Mode == ModeCLI
}

// String returns a string representation of the configuration. The API key is never printed.
func (c *Config) String() string {
	key := "unset"
	if c.APIKey != "" {
		key = "set"
	}
	return fmt.Sprintf("Config{Mode: %s, PDF: %s, DPI: %.0f, Provider: %s, Model: %s, APIKey: %s, Workers: %d, "+
		"Timeout: %s, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.PDFPath, c.DPI, c.Provider, c.Model, key, c.Workers,
		c.Timeout, c.PDFDirectory, c.LogLevel, c.MaxFileSize)
}
