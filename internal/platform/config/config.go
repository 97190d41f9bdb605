package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`

	// Optional backends. Empty means in-memory.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	ConversationHistorySize   int           `env:"CONVERSATION_HISTORY_SIZE" default:"20"`
	ConversationTTL           time.Duration `env:"CONVERSATION_TTL" default:"24h"`
	ConversationEncryptionKey string        `env:"CONVERSATION_ENCRYPTION_KEY"`
	// Zero disables the in-process orphan sweep.
	ConversationSweepInterval time.Duration `env:"CONVERSATION_SWEEP_INTERVAL" default:"15m"`

	WeightVisual     float64 `env:"FUSION_WEIGHT_VISUAL" default:"0.3"`
	WeightAudio      float64 `env:"FUSION_WEIGHT_AUDIO" default:"0.3"`
	WeightBiometric  float64 `env:"FUSION_WEIGHT_BIOMETRIC" default:"0.2"`
	WeightContextual float64 `env:"FUSION_WEIGHT_CONTEXTUAL" default:"0.2"`
	WeightText       float64 `env:"FUSION_WEIGHT_TEXT" default:"0.2"`

	ActuatorTimeout   time.Duration `env:"ACTUATOR_TIMEOUT" default:"3s"`
	LightingURL       string        `env:"LIGHTING_URL"`
	LightingToken     string        `env:"LIGHTING_TOKEN"`
	MusicURL          string        `env:"MUSIC_URL"`
	MusicToken        string        `env:"MUSIC_TOKEN"`
	NotificationURL   string        `env:"NOTIFICATION_URL"`
	NotificationToken string        `env:"NOTIFICATION_TOKEN"`

	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" default:"5s"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"20"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// FusionWeights returns the configured default channel weights.
func (c *Config) FusionWeights() domain.LayerWeights {
	return domain.LayerWeights{
		Visual:     c.WeightVisual,
		Audio:      c.WeightAudio,
		Biometric:  c.WeightBiometric,
		Contextual: c.WeightContextual,
		Text:       c.WeightText,
	}
}

func validate(cfg *Config) error {
	total := 0.0
	for _, c := range domain.AllChannels {
		w := cfg.FusionWeights().For(c)
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("FUSION_WEIGHT_%s must be a non-negative number", channelEnvSuffix(c))
		}
		total += w
	}
	if total == 0 {
		return errors.New("at least one FUSION_WEIGHT_* must be greater than zero")
	}

	if cfg.ConversationHistorySize < 2 {
		return errors.New("CONVERSATION_HISTORY_SIZE must be at least 2")
	}
	if cfg.ConversationTTL <= 0 {
		return errors.New("CONVERSATION_TTL must be positive")
	}
	if cfg.ConversationSweepInterval < 0 {
		return errors.New("CONVERSATION_SWEEP_INTERVAL must not be negative")
	}
	if cfg.ActuatorTimeout <= 0 {
		return errors.New("ACTUATOR_TIMEOUT must be positive")
	}
	if cfg.ClassifierTimeout <= 0 {
		return errors.New("CLASSIFIER_TIMEOUT must be positive")
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst <= 0 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}

	if cfg.ConversationEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.ConversationEncryptionKey)
		if err != nil {
			return fmt.Errorf("CONVERSATION_ENCRYPTION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("CONVERSATION_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	endpoints := map[string]string{
		"LIGHTING_URL":     cfg.LightingURL,
		"MUSIC_URL":        cfg.MusicURL,
		"NOTIFICATION_URL": cfg.NotificationURL,
		"CLASSIFIER_URL":   cfg.ClassifierURL,
	}
	for _, name := range []string{"LIGHTING_URL", "MUSIC_URL", "NOTIFICATION_URL", "CLASSIFIER_URL"} {
		raw := endpoints[name]
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL", name)
		}
	}

	return nil
}

func channelEnvSuffix(c domain.Channel) string {
	switch c {
	case domain.ChannelVisual:
		return "VISUAL"
	case domain.ChannelAudio:
		return "AUDIO"
	case domain.ChannelBiometric:
		return "BIOMETRIC"
	case domain.ChannelContextual:
		return "CONTEXTUAL"
	default:
		return "TEXT"
	}
}
