package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
	Buffer      BufferConfig      `mapstructure:"buffer"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
	SideA       SideAConfig       `mapstructure:"side_a"`
	SideB       SideBConfig       `mapstructure:"side_b"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Env  string `mapstructure:"env" validate:"required"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error fatal"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output" validate:"required"` // stdout, stderr, or file path
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host                  string        `mapstructure:"host" validate:"required"`
	Port                  int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	Password              string        `mapstructure:"password"`
	DB                    int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix             string        `mapstructure:"key_prefix"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	AllowInMemoryFallback bool          `mapstructure:"allow_in_memory_fallback"`
}

// DedupConfig bounds the processed-message queues
type DedupConfig struct {
	MaxProcessedLimit int `mapstructure:"max_processed_limit" validate:"gt=0"`
}

// BufferConfig bounds each per-session FIFO
type BufferConfig struct {
	MaxLength int `mapstructure:"max_length" validate:"gt=0"`
}

// RetryConfig holds the send retry policy. MaxRetries counts total attempts.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gt=0"`
	Delay      time.Duration `mapstructure:"delay" validate:"gte=0"`
}

// DeliveryConfig controls the drain loop and adapter calls
type DeliveryConfig struct {
	DrainInterval   time.Duration `mapstructure:"drain_interval" validate:"gt=0"`
	SendInterval    time.Duration `mapstructure:"send_interval" validate:"gte=0"`
	AdapterTimeout  time.Duration `mapstructure:"adapter_timeout" validate:"gt=0"`
	HandoffCapacity int           `mapstructure:"handoff_capacity" validate:"gt=0"`
}

// SessionConfig maps a stable session id to the display name Side A shows
type SessionConfig struct {
	ID          string `mapstructure:"id" validate:"required"`
	DisplayName string `mapstructure:"display_name" validate:"required"`
}

// SideAConfig holds the group-chat poller and adapter settings
type SideAConfig struct {
	PollInterval            time.Duration    `mapstructure:"poll_interval" validate:"gt=0"`
	Window                  int              `mapstructure:"window" validate:"gt=0"`
	Sessions                []SessionConfig  `mapstructure:"sessions" validate:"dive"`
	RequestPatterns         []string         `mapstructure:"request_patterns" validate:"min=1,dive,regexp"`
	AutomatedSenderPatterns []string         `mapstructure:"automated_sender_patterns" validate:"dive,regexp"`
	UnreadSuffixPattern     string           `mapstructure:"unread_suffix_pattern" validate:"omitempty,regexp"`
	Mattermost              MattermostConfig `mapstructure:"mattermost"`
}

// MattermostConfig holds the Side A chat server connection
type MattermostConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Token    string `mapstructure:"token"`
	TeamName string `mapstructure:"team_name"`
}

// SideBConfig holds the vendor-chat poller and adapter settings
type SideBConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Window            int           `mapstructure:"window" validate:"gt=0"`
	BotSenderPatterns []string      `mapstructure:"bot_sender_patterns" validate:"min=1,dive,regexp"`
	ReplyPatterns     []string      `mapstructure:"reply_patterns" validate:"min=1,dive,regexp"`
	Browser           BrowserConfig `mapstructure:"browser"`
}

// BrowserConfig describes the vendor web chat page
type BrowserConfig struct {
	RemoteURL       string        `mapstructure:"remote_url"` // DevTools endpoint of an already running Chrome
	Launch          bool          `mapstructure:"launch"`     // start a local Chrome instead of attaching
	Headless        bool          `mapstructure:"headless"`
	PageURL         string        `mapstructure:"page_url"`
	ItemSelector    string        `mapstructure:"item_selector"`
	SenderSelector  string        `mapstructure:"sender_selector"`
	ContentSelector string        `mapstructure:"content_selector"`
	InputSelector   string        `mapstructure:"input_selector"`
	SendSelector    string        `mapstructure:"send_selector"` // empty presses Enter
	PageTimeout     time.Duration `mapstructure:"page_timeout"`
}

// CorrelationConfig holds order-number extraction patterns
type CorrelationConfig struct {
	OrderPatterns []string `mapstructure:"order_patterns" validate:"min=1,dive,regexp"`
}

// HTTPConfig holds the admin HTTP server configuration
type HTTPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // e.g. "localhost:4317"
	SamplingRatio     float64 `mapstructure:"sampling_ratio" validate:"gte=0,lte=1"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with BRIDGE_ prefix (e.g., BRIDGE_REDIS_HOST)
// 2. config.toml in ., ./config or /etc/chatbridge
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path
// searches the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/chatbridge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Redis: RedisConfig{
			Host:                  v.GetString("redis.host"),
			Port:                  v.GetInt("redis.port"),
			Password:              v.GetString("redis.password"),
			DB:                    v.GetInt("redis.db"),
			KeyPrefix:             v.GetString("redis.key_prefix"),
			DialTimeout:           v.GetDuration("redis.dial_timeout"),
			AllowInMemoryFallback: v.GetBool("redis.allow_in_memory_fallback"),
		},
		Dedup: DedupConfig{
			MaxProcessedLimit: v.GetInt("dedup.max_processed_limit"),
		},
		Buffer: BufferConfig{
			MaxLength: v.GetInt("buffer.max_length"),
		},
		Retry: RetryConfig{
			MaxRetries: v.GetInt("retry.max_retries"),
			Delay:      v.GetDuration("retry.delay"),
		},
		Delivery: DeliveryConfig{
			DrainInterval:   v.GetDuration("delivery.drain_interval"),
			SendInterval:    v.GetDuration("delivery.send_interval"),
			AdapterTimeout:  v.GetDuration("delivery.adapter_timeout"),
			HandoffCapacity: v.GetInt("delivery.handoff_capacity"),
		},
		SideA: SideAConfig{
			PollInterval:            v.GetDuration("side_a.poll_interval"),
			Window:                  v.GetInt("side_a.window"),
			RequestPatterns:         v.GetStringSlice("side_a.request_patterns"),
			AutomatedSenderPatterns: v.GetStringSlice("side_a.automated_sender_patterns"),
			UnreadSuffixPattern:     v.GetString("side_a.unread_suffix_pattern"),
			Mattermost: MattermostConfig{
				URL:      v.GetString("side_a.mattermost.url"),
				Token:    v.GetString("side_a.mattermost.token"),
				TeamName: v.GetString("side_a.mattermost.team_name"),
			},
		},
		SideB: SideBConfig{
			PollInterval:      v.GetDuration("side_b.poll_interval"),
			Window:            v.GetInt("side_b.window"),
			BotSenderPatterns: v.GetStringSlice("side_b.bot_sender_patterns"),
			ReplyPatterns:     v.GetStringSlice("side_b.reply_patterns"),
			Browser: BrowserConfig{
				RemoteURL:       v.GetString("side_b.browser.remote_url"),
				Launch:          v.GetBool("side_b.browser.launch"),
				Headless:        v.GetBool("side_b.browser.headless"),
				PageURL:         v.GetString("side_b.browser.page_url"),
				ItemSelector:    v.GetString("side_b.browser.item_selector"),
				SenderSelector:  v.GetString("side_b.browser.sender_selector"),
				ContentSelector: v.GetString("side_b.browser.content_selector"),
				InputSelector:   v.GetString("side_b.browser.input_selector"),
				SendSelector:    v.GetString("side_b.browser.send_selector"),
				PageTimeout:     v.GetDuration("side_b.browser.page_timeout"),
			},
		},
		Correlation: CorrelationConfig{
			OrderPatterns: v.GetStringSlice("correlation.order_patterns"),
		},
		HTTP: HTTPConfig{
			Enabled:      v.GetBool("http.enabled"),
			Addr:         v.GetString("http.addr"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	// Sessions are an array of tables and cannot come from env vars
	if err := v.UnmarshalKey("side_a.sessions", &cfg.SideA.Sessions); err != nil {
		return nil, fmt.Errorf("error decoding side_a.sessions: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SessionDisplayNames returns session id → display name
func (c *SideAConfig) SessionDisplayNames() map[string]string {
	out := make(map[string]string, len(c.Sessions))
	for _, s := range c.Sessions {
		out[s.ID] = s.DisplayName
	}
	return out
}
