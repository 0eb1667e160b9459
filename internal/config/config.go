// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Result store backends
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Cloud recognizer backends. With "none" only browser-side recognition is
// available.
const (
	STTNone   = "none"
	STTGoogle = "google"
	STTMock   = "mock"
)

// Config holds all server settings
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`

	SilenceTimeout time.Duration `env:"SILENCE_TIMEOUT" envDefault:"700ms"`
	SettleDelay    time.Duration `env:"SETTLE_DELAY" envDefault:"300ms"`

	WordsFile      string `env:"WORDS_FILE"`
	HomophonesFile string `env:"HOMOPHONES_FILE"`

	Store           string        `env:"RESULT_STORE" envDefault:"memory"`
	MongoURI        string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase   string        `env:"MONGODB_DATABASE" envDefault:"sayword"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"sayword.db"`
	ResultRetention time.Duration `env:"RESULT_RETENTION" envDefault:"720h"`
	CleanupInterval time.Duration `env:"RESULT_CLEANUP_INTERVAL" envDefault:"1h"`

	STT             string `env:"STT_BACKEND" envDefault:"none"`
	STTLanguage     string `env:"STT_LANGUAGE" envDefault:"en-US"`
	STTSampleRate   int    `env:"STT_SAMPLE_RATE" envDefault:"16000"`
	MaxAlternatives int    `env:"STT_MAX_ALTERNATIVES" envDefault:"5"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	ElevenLabsAPIKey  string `env:"ELEVEN_LABS_API_KEY"`
	ElevenLabsVoiceID string `env:"ELEVEN_LABS_VOICE_ID" envDefault:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModelID string `env:"ELEVEN_LABS_MODEL_ID" envDefault:"eleven_flash_v2_5"`
}

// Load reads an optional .env file, then parses the environment
func Load(files ...string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe fallback
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreMongo, StoreSQLite:
	default:
		return fmt.Errorf("config: unknown RESULT_STORE %q", c.Store)
	}
	switch c.STT {
	case STTNone, STTGoogle, STTMock:
	default:
		return fmt.Errorf("config: unknown STT_BACKEND %q", c.STT)
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.SilenceTimeout <= 0 {
		return errors.New("config: SILENCE_TIMEOUT must be positive")
	}
	if c.SettleDelay < 0 {
		return errors.New("config: SETTLE_DELAY must not be negative")
	}
	if c.MaxAlternatives < 1 {
		return errors.New("config: STT_MAX_ALTERNATIVES must be at least 1")
	}
	return nil
}

// Debug reports whether development logging is requested
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}
