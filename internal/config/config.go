// Package config loads application configuration from a YAML file and
// TRACKSCOUT_-prefixed environment variables, and owns logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz" mapstructure:"musicbrainz"`
	Spotify     SpotifyConfig     `yaml:"spotify" mapstructure:"spotify"`
	YouTube     YouTubeConfig     `yaml:"youtube" mapstructure:"youtube"`
	LastFM      LastFMConfig      `yaml:"lastfm" mapstructure:"lastfm"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit" mapstructure:"ratelimit"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MusicBrainzConfig configures the primary provider. MusicBrainz requires an
// identifying User-Agent; there is no API key.
type MusicBrainzConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// SpotifyConfig holds Spotify client-credentials settings. Empty credentials
// disable the provider.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
}

// YouTubeConfig holds YouTube Data API settings. An empty key disables the
// provider.
type YouTubeConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LastFMConfig holds Last.fm API settings. An empty key disables the provider.
type LastFMConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProviderLimitConfig configures one provider's rate-limit windows.
type ProviderLimitConfig struct {
	PerSecond    int            `yaml:"per_second" mapstructure:"per_second"`
	PerMinute    int            `yaml:"per_minute" mapstructure:"per_minute"`
	DailyUnits   int            `yaml:"daily_units" mapstructure:"daily_units"`
	OpCosts      map[string]int `yaml:"op_costs" mapstructure:"op_costs"`
	PatienceSecs int            `yaml:"patience_secs" mapstructure:"patience_secs"`
}

// RateLimitConfig maps provider names to their limit windows.
type RateLimitConfig struct {
	Providers map[string]ProviderLimitConfig `yaml:"providers" mapstructure:"providers"`
}

// Limits converts the config into the limiter's internal shape.
func (c RateLimitConfig) Limits() map[string]ratelimit.Limits {
	out := make(map[string]ratelimit.Limits, len(c.Providers))
	for name, p := range c.Providers {
		out[name] = ratelimit.Limits{
			PerSecond:  p.PerSecond,
			PerMinute:  p.PerMinute,
			DailyUnits: p.DailyUnits,
			OpCosts:    p.OpCosts,
		}
	}
	return out
}

// Patience returns the configured wait budget for a provider.
func (c RateLimitConfig) Patience(provider string) time.Duration {
	if p, ok := c.Providers[provider]; ok && p.PatienceSecs > 0 {
		return time.Duration(p.PatienceSecs) * time.Second
	}
	return 30 * time.Second
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	// TablesPath overrides the embedded rule tables when set.
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP scoring server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// RequestsPerSecond caps per-client request rate; Burst is the
	// short-term allowance above it.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
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
	v.SetEnvPrefix("TRACKSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "trackscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 10)
	v.SetDefault("server.burst", 20)
	v.SetDefault("batch.concurrency", 10)
	v.SetDefault("musicbrainz.base_url", "https://musicbrainz.org/ws/2")
	v.SetDefault("musicbrainz.user_agent", "trackscout/1.0 (research@sells-group.example)")
	v.SetDefault("spotify.base_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("lastfm.base_url", "https://ws.audioscrobbler.com/2.0")

	// Published provider limits; override only when an account carries a
	// different quota.
	v.SetDefault("ratelimit.providers", map[string]ProviderLimitConfig{
		model.ProviderMusicBrainz: {PerSecond: 1, PatienceSecs: 30},
		model.ProviderSpotify:     {PerMinute: 100, PatienceSecs: 30},
		model.ProviderYouTube: {
			PerMinute:    60,
			DailyUnits:   10000,
			OpCosts:      map[string]int{"search": 100, "details": 1},
			PatienceSecs: 30,
		},
		model.ProviderLastFM: {PerMinute: 60, PatienceSecs: 30},
	})

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
