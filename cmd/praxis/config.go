package main

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
	transportHTTP   = "http"
	transportGemini = "gemini"
)

// config is the resolved configuration shared by all commands.
type config struct {
	BaseURL      string
	Transport    string
	GeminiAPIKey string
	GCPProject   string
	GCPLocation  string
	Model        string
	UserName     string
	UserEmail    string
	Archive      string
	LogLevel     string
	LogFile      string
	Strict       bool
	Timeout      time.Duration
}

// registerFlags declares the persistent flags every command understands.
func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default: ~/.config/praxis/config.yaml)")
	fs.String("base-url", "http://localhost:8000", "Tutor backend URL")
	fs.String("transport", transportHTTP, "Backend: http or gemini")
	fs.String("gemini-api-key", "", "Gemini API key (gemini transport)")
	fs.String("gcp-project", "", "Google Cloud project for Vertex AI (gemini transport)")
	fs.String("gcp-location", "", "Vertex AI location (default: us-central1)")
	fs.String("model", "", "Gemini model ID (gemini transport)")
	fs.String("user-name", "", "Name used to log in")
	fs.String("user-email", "", "Email used to log in")
	fs.String("archive", "", "SQLite file that keeps a local copy of every conversation")
	fs.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	fs.String("log-file", "", "Write logs to this file instead of stderr")
	fs.Bool("strict", false, "Fail loudly on conversation log contract violations")
	fs.Duration("timeout", 30*time.Second, "Deadline for login, module listing and history requests")
}

// newViper binds flags, PRAXIS_* environment variables and the optional
// config file. Flags win over the environment, which wins over the file.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix("PRAXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini-api-key", "PRAXIS_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "praxis"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig reads and validates the configuration.
func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		BaseURL:      strings.TrimSpace(v.GetString("base-url")),
		Transport:    strings.ToLower(strings.TrimSpace(v.GetString("transport"))),
		GeminiAPIKey: v.GetString("gemini-api-key"),
		GCPProject:   v.GetString("gcp-project"),
		GCPLocation:  v.GetString("gcp-location"),
		Model:        v.GetString("model"),
		UserName:     strings.TrimSpace(v.GetString("user-name")),
		UserEmail:    strings.TrimSpace(v.GetString("user-email")),
		Archive:      v.GetString("archive"),
		LogLevel:     v.GetString("log-level"),
		LogFile:      v.GetString("log-file"),
		Strict:       v.GetBool("strict"),
		Timeout:      v.GetDuration("timeout"),
	}
	switch cfg.Transport {
	case transportHTTP:
		if cfg.BaseURL == "" {
			return config{}, errors.New("base-url is required for the http transport")
		}
	case transportGemini:
		if cfg.GeminiAPIKey == "" && cfg.GCPProject == "" {
			return config{}, errors.New("gemini transport needs gemini-api-key (or GEMINI_API_KEY) or gcp-project")
		}
	default:
		return config{}, fmt.Errorf("unknown transport %q: must be %q or %q", cfg.Transport, transportHTTP, transportGemini)
	}
	if cfg.Timeout <= 0 {
		return config{}, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}
