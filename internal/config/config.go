// Package config assembles the gateway configuration from an optional TOML
// file and the process environment. Environment values win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	ProviderSarvam = "sarvam"
	ProviderOpenAI = "openai"
)

// Duration accepts "90s" / "10m" style values in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type SarvamConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type StorageConfig struct {
	AudioDir string `toml:"audio_dir"`
	TempDir  string `toml:"temp_dir"`
}

type DocIntelConfig struct {
	JobTimeout   Duration `toml:"job_timeout"`
	PollInterval Duration `toml:"poll_interval"`
}

type TTSConfig struct {
	Provider     string `toml:"provider"`
	OpenAIAPIKey string `toml:"openai_api_key"`
	OpenAIVoice  string `toml:"openai_voice"`
}

type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Secure    bool   `toml:"secure"`
}

func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type TelegramConfig struct {
	BotToken    string `toml:"bot_token"`
	AdminChatID int64  `toml:"admin_chat_id"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.AdminChatID != 0
}

type Config struct {
	Port               string `toml:"port"`
	Env                string `toml:"env"`
	PublicBaseURL      string `toml:"public_base_url"`
	DatabaseURL        string `toml:"database_url"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	LogFile            string `toml:"log_file"`

	Sarvam   SarvamConfig   `toml:"sarvam"`
	Storage  StorageConfig  `toml:"storage"`
	DocIntel DocIntelConfig `toml:"document_intelligence"`
	TTS      TTSConfig      `toml:"tts"`
	S3       S3Config       `toml:"s3"`
	Telegram TelegramConfig `toml:"telegram"`
}

func Default() Config {
	return Config{
		Port: "3000",
		Env:  "development",
		Storage: StorageConfig{
			AudioDir: "./audio",
			TempDir:  ".",
		},
		DocIntel: DocIntelConfig{
			JobTimeout:   Duration{10 * time.Minute},
			PollInterval: Duration{2 * time.Second},
		},
		TTS: TTSConfig{
			Provider:    ProviderSarvam,
			OpenAIVoice: "alloy",
		},
		S3: S3Config{Secure: true},
	}
}

// Load reads CONFIG_FILE (if set) and then the environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("PORT", &cfg.Port)
	str("NODE_ENV", &cfg.Env)
	str("APP_ENV", &cfg.Env)
	str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("LOG_FILE", &cfg.LogFile)

	str("SARVAM_API_KEY", &cfg.Sarvam.APIKey)
	str("SARVAM_BASE_URL", &cfg.Sarvam.BaseURL)

	str("AUDIO_DIR", &cfg.Storage.AudioDir)
	str("TEMP_DIR", &cfg.Storage.TempDir)

	str("TTS_PROVIDER", &cfg.TTS.Provider)
	str("OPENAI_API_KEY", &cfg.TTS.OpenAIAPIKey)
	str("OPENAI_TTS_VOICE", &cfg.TTS.OpenAIVoice)

	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_REGION", &cfg.S3.Region)

	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)

	if v := getenv("S3_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_SECURE: %w", err)
		}
		cfg.S3.Secure = b
	}

	if v := getenv("TELEGRAM_ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		cfg.Telegram.AdminChatID = id
	}

	if v := getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = n
	}

	for key, dst := range map[string]*Duration{
		"DOC_JOB_TIMEOUT":   &cfg.DocIntel.JobTimeout,
		"DOC_POLL_INTERVAL": &cfg.DocIntel.PollInterval,
	} {
		if v := getenv(key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	return nil
}

func (c *Config) validate() error {
	c.TTS.Provider = strings.ToLower(c.TTS.Provider)
	switch c.TTS.Provider {
	case ProviderSarvam:
	case ProviderOpenAI:
		if c.TTS.OpenAIAPIKey == "" {
			return fmt.Errorf("TTS_PROVIDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTS.Provider)
	}

	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.DocIntel.JobTimeout.Duration < 0 {
		return fmt.Errorf("DOC_JOB_TIMEOUT must not be negative")
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
