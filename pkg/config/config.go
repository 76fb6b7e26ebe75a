package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Engine configuration
	Engine EngineConfig `mapstructure:"engine"`

	// Proposer configuration
	Proposer ProposerConfig `mapstructure:"proposer"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Neo4j export configuration
	Neo4j Neo4jConfig `mapstructure:"neo4j"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// Checkpoint configuration for resumable pipeline runs
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // color, text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// StorageConfig selects where ontology and KG documents are persisted.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // file, badger
	Path   string `mapstructure:"path"`
	// Name is the artifact name the engine saves under.
	Name string `mapstructure:"name"`
}

// EngineConfig holds consistency engine settings
type EngineConfig struct {
	MaxRemedyAttempts int  `mapstructure:"max_remedy_attempts"`
	MaxRejections     int  `mapstructure:"max_rejections"`
	AncestorCacheSize int  `mapstructure:"ancestor_cache_size"`
	AutoStitch        bool `mapstructure:"auto_stitch"`
}

// ProposerConfig holds configuration for the LLM proposer
type ProposerConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, script
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Neo4jConfig holds the Neo4j export target
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	Metrics     bool   `mapstructure:"metrics"`
}

// AlertConfig holds configuration for email alerts
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CheckpointConfig holds where pipeline progress is recorded
type CheckpointConfig struct {
	Dir    string `mapstructure:"dir"`
	MaxAge int    `mapstructure:"max_age"` // in hours
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("ONTOWEAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Engine.MaxRemedyAttempts < 1 {
		return fmt.Errorf("engine.max_remedy_attempts must be at least 1, got %d", c.Engine.MaxRemedyAttempts)
	}
	switch c.Storage.Driver {
	case "file", "badger":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "color", "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Log.Format)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "color")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Storage defaults
	viper.SetDefault("storage.driver", "file")
	viper.SetDefault("storage.path", "./ontoweave_data")
	viper.SetDefault("storage.name", "default")

	// Engine defaults
	viper.SetDefault("engine.max_remedy_attempts", 3)
	viper.SetDefault("engine.max_rejections", 25)
	viper.SetDefault("engine.ancestor_cache_size", 1024)
	viper.SetDefault("engine.auto_stitch", true)

	viper.SetDefault("proposer.provider", "openai")
	viper.SetDefault("proposer.model", "gpt-4o-mini")
	viper.SetDefault("proposer.temperature", 0.1)
	viper.SetDefault("proposer.max_tokens", 4096)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.smtp_port", 587)

	viper.SetDefault("checkpoint.max_age", 72)

	// Telemetry defaults
	viper.SetDefault("telemetry.metrics", true)
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.ontoweave/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with well-known environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.Proposer.APIKey == "" {
		config.Proposer.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && config.Proposer.BaseURL == "" {
		config.Proposer.BaseURL = baseURL
	}

	// Neo4j credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Neo4j.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Neo4j.Password = pass
	}

	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.Alert.Password = pass
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
