package config

import "time"

// Default pattern sets, matching the vendor's "YT" order numbers.
var (
	DefaultRequestPatterns = []string{
		`(?s)YT\d{13,15}\s*(催件|拦截|取消拦截|查重)`,
		`(?s)YT\d{13,15}\s*(到哪里|到那里|退回了吗)`,
		`(?s)YT\d{13,15}\s*(改地址|改址|更址)`,
		`(?s)YT\d{13,15}\s*(重量)\s*$`,
	}
	DefaultAutomatedSenderPatterns = []string{`小圆在线.*`}
	DefaultBotSenderPatterns       = []string{`小圆`}
	DefaultReplyPatterns           = []string{`YT\d{13,15}`}
	DefaultOrderPatterns           = []string{`YT\d{13,15}`}
)

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "chatbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "chatbridge:"
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Dedup.MaxProcessedLimit == 0 {
		cfg.Dedup.MaxProcessedLimit = 1000
	}
	if cfg.Buffer.MaxLength == 0 {
		cfg.Buffer.MaxLength = 1000
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = 5 * time.Second
	}
	if cfg.Delivery.DrainInterval == 0 {
		cfg.Delivery.DrainInterval = time.Second
	}
	if cfg.Delivery.SendInterval == 0 {
		cfg.Delivery.SendInterval = 4 * time.Second
	}
	if cfg.Delivery.AdapterTimeout == 0 {
		cfg.Delivery.AdapterTimeout = 30 * time.Second
	}
	if cfg.Delivery.HandoffCapacity == 0 {
		cfg.Delivery.HandoffCapacity = 256
	}

	if cfg.SideA.PollInterval == 0 {
		cfg.SideA.PollInterval = 2 * time.Second
	}
	if cfg.SideA.Window == 0 {
		cfg.SideA.Window = 5
	}
	if len(cfg.SideA.RequestPatterns) == 0 {
		cfg.SideA.RequestPatterns = DefaultRequestPatterns
	}
	if len(cfg.SideA.AutomatedSenderPatterns) == 0 {
		cfg.SideA.AutomatedSenderPatterns = DefaultAutomatedSenderPatterns
	}
	if cfg.SideA.UnreadSuffixPattern == "" {
		cfg.SideA.UnreadSuffixPattern = `\d+条新消息$`
	}

	if cfg.SideB.PollInterval == 0 {
		cfg.SideB.PollInterval = 3 * time.Second
	}
	if cfg.SideB.Window == 0 {
		cfg.SideB.Window = 10
	}
	if len(cfg.SideB.BotSenderPatterns) == 0 {
		cfg.SideB.BotSenderPatterns = DefaultBotSenderPatterns
	}
	if len(cfg.SideB.ReplyPatterns) == 0 {
		cfg.SideB.ReplyPatterns = DefaultReplyPatterns
	}
	b := &cfg.SideB.Browser
	if b.RemoteURL == "" {
		b.RemoteURL = "ws://127.0.0.1:9222"
	}
	if b.ItemSelector == "" {
		b.ItemSelector = ".news-box"
	}
	if b.SenderSelector == "" {
		b.SenderSelector = "div:first-child > span:first-child"
	}
	if b.ContentSelector == "" {
		b.ContentSelector = ".text-content"
	}
	if b.InputSelector == "" {
		b.InputSelector = "#edit-content"
	}
	if b.PageTimeout == 0 {
		b.PageTimeout = 30 * time.Second
	}

	if len(cfg.Correlation.OrderPatterns) == 0 {
		cfg.Correlation.OrderPatterns = DefaultOrderPatterns
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8090"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "chatbridge"
	}
}
