// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects the durable key-value backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // badger | redis | postgres
	Path   string `yaml:"path"`   // badger directory; empty means in-memory
	// EncryptionKey seals saved chat sessions at rest when set (16, 24 or 32 bytes).
	EncryptionKey string `yaml:"encryption_key"`
}

type VertesiaConfig struct {
	BaseURL               string        `yaml:"base_url"`
	AuthURL               string        `yaml:"auth_url"`
	APIKey                string        `yaml:"api_key"`
	EnvironmentID         string        `yaml:"environment_id"`
	Model                 string        `yaml:"model"`
	ResearchInteraction   string        `yaml:"research_interaction"`
	ChatInteraction       string        `yaml:"chat_interaction"`
	WhiteLabelInteraction string        `yaml:"white_label_interaction"`
	PulseInteraction      string        `yaml:"pulse_interaction"`
	Timeout               time.Duration `yaml:"timeout"`
	TokenTTL              time.Duration `yaml:"token_ttl"`
	MaxConcurrent         int           `yaml:"max_concurrent"`
}

type JobsConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	PassiveInterval time.Duration `yaml:"passive_interval"`
	Ceiling         time.Duration `yaml:"ceiling"`
	ActiveKey       string        `yaml:"active_key"`
	HistoryKey      string        `yaml:"history_key"`
}

type ChatConfig struct {
	HistoryWindow  int           `yaml:"history_window"`
	MinAnswerChars int           `yaml:"min_answer_chars"`
	StreamTimeout  time.Duration `yaml:"stream_timeout"`
	MaxSaved       int           `yaml:"max_saved"`
	HistoryKey     string        `yaml:"history_key"`
	MaxIterations  int           `yaml:"max_iterations"`
}

type PulseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	DailyCron        string        `yaml:"daily_cron"`
	Gate             time.Duration `yaml:"gate"`
	GenerationWait   time.Duration `yaml:"generation_wait"`
	UploadSettle     time.Duration `yaml:"upload_settle"`
	Keywords         []string      `yaml:"keywords"`
	MaxUploadsPerDay int           `yaml:"max_uploads_per_day"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Vertesia VertesiaConfig `yaml:"vertesia"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Chat     ChatConfig     `yaml:"chat"`
	Pulse    PulseConfig    `yaml:"pulse"`
	Telegram TelegramConfig `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, applies defaults and env overrides, then validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCOUT_VERTESIA_API_KEY"); v != "" {
		cfg.Vertesia.APIKey = v
	}
	if v := os.Getenv("SCOUT_ENCRYPTION_KEY"); v != "" {
		cfg.Store.EncryptionKey = v
	}
	if v := os.Getenv("SCOUT_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "badger"
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}

	v := &cfg.Vertesia
	if v.BaseURL == "" {
		v.BaseURL = "https://api.vertesia.io/api/v1"
	}
	v.BaseURL = strings.TrimRight(v.BaseURL, "/")
	if v.AuthURL == "" {
		v.AuthURL = "https://api.vertesia.io/auth/token"
	}
	if v.Model == "" {
		v.Model = "publishers/anthropic/models/claude-sonnet-4"
	}
	if v.ResearchInteraction == "" {
		v.ResearchInteraction = "ResearchV2"
	}
	if v.ChatInteraction == "" {
		v.ChatInteraction = "DocumentChat"
	}
	if v.WhiteLabelInteraction == "" {
		v.WhiteLabelInteraction = "WhiteLabel"
	}
	if v.PulseInteraction == "" {
		v.PulseInteraction = "Pulse"
	}
	if v.Timeout <= 0 {
		v.Timeout = 30 * time.Second
	}
	if v.TokenTTL <= 0 {
		// tokens live an hour; refresh five minutes early
		v.TokenTTL = 55 * time.Minute
	}
	if v.MaxConcurrent <= 0 {
		v.MaxConcurrent = 4
	}

	j := &cfg.Jobs
	if j.PollInterval <= 0 {
		j.PollInterval = 15 * time.Second
	}
	if j.Ceiling <= 0 {
		j.Ceiling = 30 * time.Minute
	}
	if j.PassiveInterval <= 0 {
		j.PassiveInterval = j.PollInterval
	}
	if j.ActiveKey == "" {
		j.ActiveKey = "deepresearch_active_jobs"
	}
	if j.HistoryKey == "" {
		j.HistoryKey = "research_history"
	}

	c := &cfg.Chat
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
	if c.MinAnswerChars <= 0 {
		c.MinAnswerChars = 10
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 5 * time.Minute
	}
	if c.MaxSaved <= 0 {
		c.MaxSaved = 50
	}
	if c.HistoryKey == "" {
		c.HistoryKey = "library_chat_history"
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}

	p := &cfg.Pulse
	if p.DailyCron == "" {
		p.DailyCron = "30 9 * * *"
	}
	if p.Gate <= 0 {
		p.Gate = 12 * time.Hour
	}
	if p.GenerationWait <= 0 {
		p.GenerationWait = 5 * time.Minute
	}
	if p.UploadSettle <= 0 {
		p.UploadSettle = 30 * time.Second
	}
	if len(p.Keywords) == 0 {
		p.Keywords = []string{"digest", "pulse", "portfolio pulse"}
	}
	if p.MaxUploadsPerDay <= 0 {
		p.MaxUploadsPerDay = 2
	}
}

// Validate performs the minimal checks needed to start.
func (c *Config) Validate() error {
	if c.Vertesia.APIKey == "" {
		return errors.New("vertesia.api_key is required")
	}
	if c.Vertesia.EnvironmentID == "" {
		return errors.New("vertesia.environment_id is required")
	}
	switch c.Store.Driver {
	case "badger":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when store.driver=redis")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required when store.driver=postgres")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if n := len(c.Store.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("store.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}
	if c.Jobs.PassiveInterval > c.Jobs.Ceiling {
		return errors.New("jobs.passive_interval must not exceed jobs.ceiling")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}
