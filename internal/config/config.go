package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. REPORTLOOM_API_KEY.
const EnvPrefix = "REPORTLOOM"

const dirName = ".reportloom"

// Global configuration structure.
type Global struct {
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"`
	OpenAIAPIKey     string  `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	DefaultModel     string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider  string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	SummaryMaxTokens int     `mapstructure:"summary_max_tokens" yaml:"summary_max_tokens"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxSuggestions   int     `mapstructure:"max_suggestions" yaml:"max_suggestions"`

	// Artifacts
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	ChartWidth   int    `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight  int    `mapstructure:"chart_height" yaml:"chart_height"`
	DateFullScan bool   `mapstructure:"date_full_scan" yaml:"date_full_scan"`

	// Upload server
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`
}

// Keys lists every configuration key, in file order.
var Keys = []string{
	"api_key", "openai_api_key", "default_model", "default_provider",
	"max_tokens", "summary_max_tokens", "temperature", "max_suggestions",
	"output_dir", "chart_width", "chart_height", "date_full_scan",
	"listen_addr", "max_upload_mb",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "ollama_timeout_sec",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 700)
	v.SetDefault("summary_max_tokens", 400)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_suggestions", 5)
	v.SetDefault("output_dir", "output")
	v.SetDefault("chart_width", 600)
	v.SetDefault("chart_height", 400)
	v.SetDefault("date_full_scan", false)
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("max_upload_mb", 32)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)
}

// DefaultPath returns ~/.reportloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.reportloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, dirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file is fine, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// OPENAI_API_KEY is honored as a fallback for the openai provider.
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	return &c, nil
}

// Set assigns a single key from its string form, validating the value.
func Set(c *Global, key, val string) error {
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "openai_api_key":
		c.OpenAIAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		c.DefaultProvider, err = NormalizeProvider(val)
	case "max_tokens":
		c.MaxTokens, err = positiveInt(key, val)
	case "summary_max_tokens":
		c.SummaryMaxTokens, err = positiveInt(key, val)
	case "temperature":
		c.Temperature, err = cast.ToFloat64E(val)
		if err == nil && (c.Temperature < 0 || c.Temperature > 2) {
			err = fmt.Errorf("temperature must be within [0, 2]")
		}
	case "max_suggestions":
		c.MaxSuggestions, err = positiveInt(key, val)
	case "output_dir":
		c.OutputDir = val
	case "chart_width":
		c.ChartWidth, err = positiveInt(key, val)
	case "chart_height":
		c.ChartHeight, err = positiveInt(key, val)
	case "date_full_scan":
		c.DateFullScan, err = cast.ToBoolE(val)
	case "listen_addr":
		c.ListenAddr = val
	case "max_upload_mb":
		c.MaxUploadMB, err = positiveInt(key, val)
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = positiveInt(key, val)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = positiveInt(key, val)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = positiveInt(key, val)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = positiveInt(key, val)
	case "ollama_host":
		c.OllamaHost = val
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = positiveInt(key, val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// NormalizeProvider maps accepted spellings onto a provider name.
func NormalizeProvider(val string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "openrouter":
		return "openrouter", nil
	case "openai":
		return "openai", nil
	case "ollama", "local":
		return "ollama", nil
	case "none", "offline", "heuristic":
		return "none", nil
	}
	return "", fmt.Errorf("unknown provider %q (use openrouter, openai, ollama or none)", val)
}

func positiveInt(key, val string) (int, error) {
	n, err := cast.ToIntE(val)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}
