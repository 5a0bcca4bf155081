package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	viper.Reset()
}

// withArgs runs LoadFromFlags with the given arguments and restores global state afterwards.
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})

	os.Args = append([]string{"formfill"}, args...)
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_Defaults(t *testing.T) {
	cfg, err := withArgs(t, "form.pdf", "--data", "Name: Jane Doe")
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.PDFPath != "form.pdf" {
		t.Errorf("PDFPath = %v, want form.pdf", cfg.PDFPath)
	}
	if cfg.DataString != "Name: Jane Doe" {
		t.Errorf("DataString = %v, want %q", cfg.DataString, "Name: Jane Doe")
	}
	if cfg.Mode != ModeCLI {
		t.Errorf("Mode = %v, want %v", cfg.Mode, ModeCLI)
	}
	if cfg.DPI != DefaultDPI {
		t.Errorf("DPI = %v, want %v", cfg.DPI, DefaultDPI)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Interactive || cfg.PreviewOnly || cfg.NoLabels {
		t.Errorf("boolean options should default to false: %+v", cfg)
	}
	if cfg.PDFDirectory == "" {
		t.Error("PDFDirectory should not be empty")
	}
	if cfg.Provider != DefaultProvider || cfg.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Provider/Model = %v/%v, want anthropic/claude-sonnet-4-20250514", cfg.Provider, cfg.Model)
	}
}

func TestLoadFromFlags_ModelFollowsProvider(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--provider=openai"}, "gpt-4o"},
		{[]string{"--provider=OpenAI"}, "gpt-4o"},
		{[]string{"--provider=ollama"}, "llava"},
		{[]string{"--provider=mistral"}, "pixtral-12b-2409"},
		{[]string{"--provider=anthropic"}, "claude-sonnet-4-20250514"},
		{[]string{"--provider=openai", "--model=gpt-4.1-mini"}, "gpt-4.1-mini"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			args := append([]string{"form.pdf", "-s", "A: b"}, tt.args...)
			cfg, err := withArgs(t, args...)
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			if cfg.Model != tt.want {
				t.Errorf("Model = %v, want %v", cfg.Model, tt.want)
			}
		})
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	cfg, err := withArgs(t,
		"-j", "answers.json",
		"-o", "out.pdf",
		"--preview", "p.png",
		"--preview-only",
		"--no-labels",
		"-i",
		"--show-confidence",
		"--dpi=200",
		"--font-size=11",
		"--hint", "second column",
		"--text-hints",
		"--provider=OpenAI",
		"--model=gpt-4o",
		"--max-tokens=4000",
		"--temperature=0.2",
		"--timeout=30s",
		"--workers=3",
		"--loglevel=debug",
		"w4.pdf",
	)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"PDFPath", cfg.PDFPath, "w4.pdf"},
		{"JSONPath", cfg.JSONPath, "answers.json"},
		{"OutputPath", cfg.OutputPath, "out.pdf"},
		{"PreviewPath", cfg.PreviewPath, "p.png"},
		{"PreviewOnly", cfg.PreviewOnly, true},
		{"NoLabels", cfg.NoLabels, true},
		{"Interactive", cfg.Interactive, true},
		{"ShowConfidence", cfg.ShowConfidence, true},
		{"DPI", cfg.DPI, 200.0},
		{"FontSize", cfg.FontSize, 11.0},
		{"Hint", cfg.Hint, "second column"},
		{"TextHints", cfg.TextHints, true},
		{"OCRHints", cfg.OCRHints, false},
		{"Provider", cfg.Provider, "openai"},
		{"Model", cfg.Model, "gpt-4o"},
		{"MaxTokens", cfg.MaxTokens, 4000},
		{"Temperature", cfg.Temperature, 0.2},
		{"Timeout", cfg.Timeout, 30 * time.Second},
		{"Workers", cfg.Workers, 3},
		{"LogLevel", cfg.LogLevel, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	t.Setenv("FORMFILL_DPI", "300")
	t.Setenv("FORMFILL_MAX_TOKENS", "1234")
	t.Setenv("FORMFILL_PROVIDER", "ollama")
	t.Setenv("FORMFILL_LOGLEVEL", "warn")

	cfg, err := withArgs(t, "form.pdf", "--csv", "answers.csv")
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.DPI != 300 {
		t.Errorf("DPI = %v, want 300", cfg.DPI)
	}
	if cfg.MaxTokens != 1234 {
		t.Errorf("MaxTokens = %v, want 1234", cfg.MaxTokens)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %v, want ollama", cfg.Provider)
	}
	if cfg.Model != "llava" {
		t.Errorf("Model = %v, want llava", cfg.Model)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("FORMFILL_DPI", "300")

	cfg, err := withArgs(t, "form.pdf", "-s", "A: b", "--dpi=96")
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.DPI != 96 {
		t.Errorf("DPI = %v, want 96 (flag should override environment)", cfg.DPI)
	}
}

func TestLoadFromFlags_StdioMode(t *testing.T) {
	dir := t.TempDir()
	cfg, err := withArgs(t, "--mode=stdio", "--dir="+dir)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if !cfg.IsStdioMode() {
		t.Errorf("Mode = %v, want stdio", cfg.Mode)
	}
	if cfg.PDFDirectory != dir {
		t.Errorf("PDFDirectory = %v, want %v", cfg.PDFDirectory, dir)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no document", []string{"-s", "A: b"}, "PDF file is required"},
		{"no data", []string{"form.pdf"}, "exactly one of"},
		{"invalid mode", []string{"--mode=server", "form.pdf", "-s", "A: b"}, "mode must be"},
		{"invalid log level", []string{"--loglevel=trace", "form.pdf", "-s", "A: b"}, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := withArgs(t, tt.args...)
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	for _, flag := range []string{"--version", "-version", "-v"} {
		t.Run(flag, func(t *testing.T) {
			_, err := withArgs(t, flag)
			if !errors.Is(err, ErrVersionRequested) {
				t.Errorf("LoadFromFlags() error = %v, want ErrVersionRequested", err)
			}
		})
	}
}
