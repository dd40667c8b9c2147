// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	LLM            LLMConfig            `mapstructure:"llm"`
	Geocode        GeocodeConfig        `mapstructure:"geocode"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Alert          AlertConfig          `mapstructure:"alert"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test

	// FrontendOrigins is the CORS allowlist for browser clients
	FrontendOrigins []string `mapstructure:"frontend_origins"`
}

// DatabaseConfig holds Neo4j connection configuration
type DatabaseConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// LLMConfig holds LLM configuration
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	// SmallModel handles extraction, modification parsing and query tooling
	SmallModel string `mapstructure:"small_model"`
	// MidModel handles canonicalisation and causal inference
	MidModel string `mapstructure:"mid_model"`

	// Timeout is the per-request timeout in seconds
	Timeout int `mapstructure:"timeout"`
}

// GeocodeConfig holds geocoding configuration
type GeocodeConfig struct {
	MapboxToken  string `mapstructure:"mapbox_token"`
	MapboxURL    string `mapstructure:"mapbox_url"`
	NominatimURL string `mapstructure:"nominatim_url"`
	UserAgent    string `mapstructure:"user_agent"`

	// Timeout is the per-request timeout in seconds
	Timeout int `mapstructure:"timeout"`
}

// PipelineConfig holds ingestion pipeline configuration
type PipelineConfig struct {
	// ChunkSize is the number of sentences per processing chunk
	ChunkSize int `mapstructure:"chunk_size"`

	// UseLLMClassifier refines keyword-based modification detection with a
	// model call
	UseLLMClassifier bool `mapstructure:"use_llm_classifier"`
}

// AlertConfig holds SMTP settings for operational alerts.
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig tunes the breaker guarding LLM calls. Interval and
// Timeout are in seconds.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load builds the configuration from viper's bound sources, applying
// defaults first and environment overrides last.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.frontend_origins", []string{"http://localhost:3000"})

	// Database defaults
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	// LLM defaults
	viper.SetDefault("llm.small_model", "gpt-5-nano")
	viper.SetDefault("llm.mid_model", "gpt-5-mini")
	viper.SetDefault("llm.timeout", 60)

	// Geocode defaults
	viper.SetDefault("geocode.mapbox_url", "https://api.mapbox.com/geocoding/v5/mapbox.places")
	viper.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	viper.SetDefault("geocode.user_agent", "chronotope/1.0")
	viper.SetDefault("geocode.timeout", 10)

	// Pipeline defaults
	viper.SetDefault("pipeline.chunk_size", 3)
	viper.SetDefault("pipeline.use_llm_classifier", false)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 60)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv applies credential and endpoint overrides that are usually
// injected through the environment rather than the config file.
func overrideWithEnv(config *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	// LLM credentials
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}

	// Geocoding credentials
	if token := os.Getenv("MAPBOX_ACCESS_TOKEN"); token != "" {
		config.Geocode.MapboxToken = token
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if origins := os.Getenv("FRONTEND_ORIGIN"); origins != "" {
		var allowed []string
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				allowed = append(allowed, trimmed)
			}
		}
		if len(allowed) > 0 {
			config.Server.FrontendOrigins = allowed
		}
	}
}
