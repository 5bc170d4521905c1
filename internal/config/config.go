package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a path argument nor FLOWDESK_CONFIG is
// given.
const DefaultPath = "config/flowdesk.yaml"

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid config")

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for flowdesk.
type Config struct {
	Server    Server    `yaml:"server"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
	Sentiment Sentiment `yaml:"sentiment"`
	Export    Export    `yaml:"export"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API,
// which supplies the spot price and the price chart.
type Alpaca struct {
	APIKey          string        `yaml:"api_key"`
	APISecret       string        `yaml:"api_secret"`
	DataURL         string        `yaml:"data_url"`
	Feed            string        `yaml:"feed"`
	SpotSymbol      string        `yaml:"spot_symbol"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Sentiment holds the delta bands and default ordering of the breakeven
// views.
type Sentiment struct {
	DeltaThreshold        float64 `yaml:"delta_threshold"`
	MidDeltaMin           float64 `yaml:"mid_delta_min"`
	MidDeltaMax           float64 `yaml:"mid_delta_max"`
	HistogramRoundFigures bool    `yaml:"histogram_round_figures"`
	SortField             string  `yaml:"sort_field"`
	SortOrder             string  `yaml:"sort_order"`
}

// Export configures where exported trade files are written.
type Export struct {
	Dir string `yaml:"dir"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills in defaults, and then applies environment variable
// overrides. An empty path falls back to FLOWDESK_CONFIG and then
// DefaultPath; a missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("FLOWDESK_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are named) into the process environment without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}

	if cfg.Alpaca.DataURL == "" {
		cfg.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "sip"
	}
	if cfg.Alpaca.SpotSymbol == "" {
		cfg.Alpaca.SpotSymbol = "SPY"
	}
	if cfg.Alpaca.PollInterval == 0 {
		cfg.Alpaca.PollInterval = 5 * time.Second
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Sentiment.DeltaThreshold == 0 {
		cfg.Sentiment.DeltaThreshold = 0.64
	}
	if cfg.Sentiment.MidDeltaMin == 0 && cfg.Sentiment.MidDeltaMax == 0 {
		cfg.Sentiment.MidDeltaMin = 0.50
		cfg.Sentiment.MidDeltaMax = 0.60
	}
	if cfg.Sentiment.SortField == "" {
		cfg.Sentiment.SortField = "distance"
	}
	if cfg.Sentiment.SortOrder == "" {
		cfg.Sentiment.SortOrder = "asc"
	}

	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "export"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOWDESK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FLOWDESK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("FLOWDESK_SPOT_SYMBOL"); v != "" {
		cfg.Alpaca.SpotSymbol = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("FLOWDESK_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports the first inconsistent setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("%w: server.grpc_port %d out of range", ErrInvalid, c.Server.GRPCPort)
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		return fmt.Errorf("%w: server.port and server.grpc_port are both %d", ErrInvalid, c.Server.Port)
	}

	s := c.Sentiment
	if s.DeltaThreshold < 0 || s.DeltaThreshold > 1 {
		return fmt.Errorf("%w: sentiment.delta_threshold %v outside [0,1]", ErrInvalid, s.DeltaThreshold)
	}
	if s.MidDeltaMin < 0 || s.MidDeltaMax > 1 || s.MidDeltaMin > s.MidDeltaMax {
		return fmt.Errorf("%w: sentiment mid band [%v,%v]", ErrInvalid, s.MidDeltaMin, s.MidDeltaMax)
	}
	switch s.SortField {
	case "distance", "level", "premium":
	default:
		return fmt.Errorf("%w: sentiment.sort_field %q", ErrInvalid, s.SortField)
	}
	switch s.SortOrder {
	case "asc", "desc":
	default:
		return fmt.Errorf("%w: sentiment.sort_order %q", ErrInvalid, s.SortOrder)
	}

	if c.Alpaca.PollInterval < 0 {
		return fmt.Errorf("%w: alpaca.poll_interval %v is negative", ErrInvalid, c.Alpaca.PollInterval)
	}
	return nil
}

// HasAlpacaCredentials reports whether both Alpaca keys are set.
func (c *Config) HasAlpacaCredentials() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}
