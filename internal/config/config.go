package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendOllama    = "ollama"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

const (
	DefaultMaxTokens   = 200
	DefaultContextFile = "company_info.txt"
	DefaultLogDir      = "logs"
)

// Config holds application configuration
type Config struct {
	Backend string `toml:"backend"`
	Model   string `toml:"model"`   // e.g. "llama3:latest" for Ollama
	BaseURL string `toml:"base_url"` // empty means the backend's default endpoint

	MaxTokens int      `toml:"max_tokens"`
	Stop      []string `toml:"stop"`     // empty means the prompt template's markers
	Preamble  string   `toml:"preamble"` // empty means the built-in preamble

	ContextFile string `toml:"context_file"`

	// RequestTimeout bounds one generation call; zero waits forever
	RequestTimeout time.Duration `toml:"request_timeout"`
	// CacheTTL enables the response cache when positive
	CacheTTL time.Duration `toml:"cache_ttl"`

	StatsDB string `toml:"stats_db"` // empty disables generation stats
	LogDir  string `toml:"log_dir"`
	Debug   bool   `toml:"debug"`
	Plain   bool   `toml:"plain"` // line mode instead of the TUI
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend:     BackendOllama,
		MaxTokens:   DefaultMaxTokens,
		ContextFile: DefaultContextFile,
		LogDir:      DefaultLogDir,
	}
}

// DefaultPath is where Load looks when no explicit path is given
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".assistchat", "config.toml")
}

// Load reads a TOML file over the defaults. An empty path falls back to
// DefaultPath and a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// Normalize fills backend-dependent defaults
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Model == "" {
		c.Model = DefaultModel(c.Backend)
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL(c.Backend)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOllama, BackendOpenAI, BackendAnthropic:
	default:
		return fmt.Errorf("unknown backend: %q (ollama|openai|anthropic)", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("model must be set for backend %s", c.Backend)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.ContextFile == "" {
		return errors.New("context_file must be set")
	}
	return nil
}

// DefaultModel returns the model used when none is configured
func DefaultModel(backend string) string {
	switch backend {
	case BackendOllama:
		return "llama3:latest"
	case BackendOpenAI:
		return "local-model"
	case BackendAnthropic:
		return "claude-sonnet-4-20250514"
	}
	return ""
}

// DefaultBaseURL returns the endpoint used when none is configured
func DefaultBaseURL(backend string) string {
	switch backend {
	case BackendOllama:
		return "http://localhost:11434"
	case BackendOpenAI:
		return "http://localhost:8080"
	case BackendAnthropic:
		return "https://api.anthropic.com"
	}
	return ""
}

// LoadContext reads the static context the assistant answers from
func LoadContext(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read context file: %w", err)
	}
	return string(data), nil
}
