package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Qdrant    QdrantConfig    `yaml:"qdrant" mapstructure:"qdrant"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ArchiveConfig configures the relational mirror backend.
type ArchiveConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// QdrantConfig configures the vector store connection.
type QdrantConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key    string  `yaml:"key" mapstructure:"key"`
	MaxRPM float64 `yaml:"max_rpm" mapstructure:"max_rpm"`
}

// GeminiConfig holds Gemini embedding API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// LLMConfig points at the provider chain definition.
type LLMConfig struct {
	ChainFile string `yaml:"chain_file" mapstructure:"chain_file"`
}

// NotionConfig holds Notion API credentials for the curated events table.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	EventsDB string `yaml:"events_db" mapstructure:"events_db"`
}

// NominatimConfig configures the geocoder.
type NominatimConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// QualityConfig configures the faithfulness gate.
type QualityConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// SyncConfig configures the curated-table backfill job.
type SyncConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	AllowedOrigin []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KULTUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("archive.driver", "sqlite")
	v.SetDefault("archive.sqlite_path", "./berlin_history.db")
	v.SetDefault("qdrant.url", "http://localhost:6333")
	v.SetDefault("qdrant.collection", "berlin_events")
	v.SetDefault("tavily.max_rpm", 2.0)
	v.SetDefault("gemini.model", "gemini-embedding-001")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "berlin-kultur-intel")
	v.SetDefault("quality.threshold", 0.7)
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a given run mode depends on. Modes map to
// the CLI commands: serve, ingest, sync, geofix.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Quality.Threshold <= 0 || c.Quality.Threshold > 1 {
		problems = append(problems, "quality.threshold must be in (0, 1]")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Tavily.Key == "" {
			problems = append(problems, "tavily.key is required")
		}
		if c.Gemini.Key == "" {
			problems = append(problems, "gemini.key is required")
		}
	case "ingest":
		if c.Tavily.Key == "" {
			problems = append(problems, "tavily.key is required")
		}
		if c.Gemini.Key == "" {
			problems = append(problems, "gemini.key is required")
		}
	case "sync":
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.EventsDB == "" {
			problems = append(problems, "notion.events_db is required")
		}
		if c.Gemini.Key == "" {
			problems = append(problems, "gemini.key is required")
		}
		if c.Sync.Concurrency < 1 || c.Sync.Concurrency > 32 {
			problems = append(problems, "sync.concurrency must be between 1 and 32")
		}
	case "geofix":
		if c.Nominatim.UserAgent == "" {
			problems = append(problems, "nominatim.user_agent is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
