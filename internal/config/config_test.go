package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "cli" {
		t.Errorf("Expected default mode to be 'cli', got '%s'", cfg.Mode)
	}

	if cfg.DPI != 150 {
		t.Errorf("Expected default DPI to be 150, got %v", cfg.DPI)
	}

	if cfg.Provider != "anthropic" {
		t.Errorf("Expected default provider to be 'anthropic', got '%s'", cfg.Provider)
	}

	if cfg.Model != DefaultModel(cfg.Provider) {
		t.Errorf("Expected default model to match the provider, got '%s'", cfg.Model)
	}

	if cfg.MaxTokens != 2000 {
		t.Errorf("Expected default max tokens to be 2000, got %d", cfg.MaxTokens)
	}

	if cfg.Timeout != 120*time.Second {
		t.Errorf("Expected default timeout to be 2m, got %s", cfg.Timeout)
	}

	if cfg.ServerName != "pdf-formfill" {
		t.Errorf("Expected default server name to be 'pdf-formfill', got '%s'", cfg.ServerName)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	currentDir, _ := os.Getwd()
	if cfg.PDFDirectory != currentDir {
		t.Errorf("Expected default PDF directory to be '%s', got '%s'", currentDir, cfg.PDFDirectory)
	}
}

// validCLI returns a cli configuration that passes Validate.
func validCLI() *Config {
	cfg := DefaultConfig()
	cfg.PDFPath = "form.pdf"
	cfg.DataString = "Name: Jane Doe"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid cli config", mutate: func(*Config) {}},
		{name: "valid stdio config without document", mutate: func(c *Config) {
			c.Mode = ModeStdio
			c.PDFPath = ""
			c.DataString = ""
		}},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "server" }, wantErr: "mode must be"},
		{name: "missing document", mutate: func(c *Config) { c.PDFPath = "" }, wantErr: "PDF file is required"},
		{name: "no data source", mutate: func(c *Config) { c.DataString = "" }, wantErr: "exactly one of"},
		{name: "two data sources", mutate: func(c *Config) { c.JSONPath = "a.json" }, wantErr: "exactly one of"},
		{name: "zero dpi", mutate: func(c *Config) { c.DPI = 0 }, wantErr: "dpi"},
		{name: "dpi too high", mutate: func(c *Config) { c.DPI = 1200 }, wantErr: "dpi"},
		{name: "bad font size", mutate: func(c *Config) { c.FontSize = -1 }, wantErr: "font size"},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "palm" }, wantErr: "invalid provider"},
		{name: "empty model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "zero max tokens", mutate: func(c *Config) { c.MaxTokens = 0 }, wantErr: "max tokens"},
		{name: "temperature out of range", mutate: func(c *Config) { c.Temperature = 3 }, wantErr: "temperature"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }, wantErr: "workers"},
		{name: "empty directory", mutate: func(c *Config) { c.PDFDirectory = "" }, wantErr: "directory"},
		{name: "zero max file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size"},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCLI()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultModel(t *testing.T) {
	tests := map[string]string{
		"anthropic": "claude-sonnet-4-20250514",
		"openai":    "gpt-4o",
		"Ollama":    "llava",
		"mistral":   "pixtral-12b-2409",
		"palm":      "",
	}
	for provider, want := range tests {
		if got := DefaultModel(provider); got != want {
			t.Errorf("DefaultModel(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		logLevel string
		want     bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"error", false},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeStdio}
	if !cfg.IsStdioMode() || cfg.IsCLIMode() {
		t.Errorf("stdio mode misreported: stdio=%v cli=%v", cfg.IsStdioMode(), cfg.IsCLIMode())
	}

	cfg.Mode = ModeCLI
	if cfg.IsStdioMode() || !cfg.IsCLIMode() {
		t.Errorf("cli mode misreported: stdio=%v cli=%v", cfg.IsStdioMode(), cfg.IsCLIMode())
	}
}

func TestConfigString(t *testing.T) {
	cfg := validCLI()
	cfg.APIKey = "sk-secret"

	s := cfg.String()
	for _, want := range []string{"Mode: cli", "PDF: form.pdf", "DPI: 150", "Provider: anthropic", "APIKey: set"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %s, want it to contain %q", s, want)
		}
	}
	if strings.Contains(s, "sk-secret") {
		t.Errorf("String() leaks the API key: %s", s)
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "forms", "incoming")

	cfg := DefaultConfig()
	cfg.Mode = ModeStdio
	cfg.PDFDirectory = newDir

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	info, err := os.Stat(newDir)
	if err != nil {
		t.Fatalf("Directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", newDir)
	}
}
