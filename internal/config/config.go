// Package config assembles runtime settings. Precedence, lowest to highest:
// built-in defaults, optional YAML file, environment variables. A .env file
// in the working directory is loaded into the environment first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"
)

// Config is the full runtime configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	DBPath string `yaml:"db_path"`

	// TerritoryDir overrides the embedded gazetteer CSVs.
	TerritoryDir string `yaml:"territory_dir"`

	// UseBrowser switches listing fetches to headless Chrome.
	UseBrowser bool `yaml:"use_browser"`

	RateLimit time.Duration `yaml:"rate_limit"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// ForceSource set to "site" disables LLM enrichment.
	ForceSource string `yaml:"force_source"`

	RentMarketTTL  time.Duration `yaml:"rent_market_ttl"`
	RentMarketPath string        `yaml:"rent_market_path"`

	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig holds the enrichment client settings. The API key is only ever
// read from the environment.
type LLMConfig struct {
	APIKey            string        `yaml:"-"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxCallsPerMinute int           `yaml:"max_calls_per_minute"`
	MaxCallsPerHour   int           `yaml:"max_calls_per_hour"`
}

func defaults() Config {
	return Config{
		Addr:           ":3000",
		LogLevel:       "info",
		DBPath:         "data/listings.db",
		RateLimit:      2 * time.Second,
		CacheTTL:       time.Hour,
		RentMarketTTL:  30 * 24 * time.Hour,
		RentMarketPath: "data/rent-market.json",
		LLM: LLMConfig{
			Model:             "gpt-4.1-nano",
			MaxTokens:         256,
			Temperature:       0.1,
			Timeout:           20 * time.Second,
			MaxCallsPerMinute: 60,
			MaxCallsPerHour:   500,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips that layer. A missing .env is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be in [0, 2], got %g", c.LLM.Temperature)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if port := envString("PORT", ""); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DBPath = envString("DB_PATH", cfg.DBPath)
	cfg.TerritoryDir = envString("TERRITORY_DIR", cfg.TerritoryDir)
	cfg.UseBrowser = envBool("USE_BROWSER", cfg.UseBrowser)

	cfg.RateLimit = envMillis("AUTOFILL_RATE_LIMIT_MS", cfg.RateLimit)
	cfg.CacheTTL = envMillis("AUTOFILL_CACHE_TTL_MS", cfg.CacheTTL)
	cfg.ForceSource = strings.ToLower(envString("AUTOFILL_FORCE_SOURCE", cfg.ForceSource))

	cfg.RentMarketTTL = envMillis("RENT_MARKET_TTL_MS", cfg.RentMarketTTL)
	cfg.RentMarketPath = envString("RENT_MARKET_STORE_PATH", cfg.RentMarketPath)

	cfg.LLM.APIKey = envString("OPENAI_API_KEY", "")
	cfg.LLM.Model = envString("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.MaxTokens = envInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.Temperature = envFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.Timeout = envMillis("LLM_TIMEOUT_MS", cfg.LLM.Timeout)
	cfg.LLM.MaxCallsPerMinute = envInt("LLM_MAX_CALLS_PER_MINUTE", cfg.LLM.MaxCallsPerMinute)
	cfg.LLM.MaxCallsPerHour = envInt("LLM_MAX_CALLS_PER_HOUR", cfg.LLM.MaxCallsPerHour)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
