package config

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Database   DatabaseConfig   `json:"database"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	OpenRouter OpenRouterConfig `json:"openrouter,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// PollTimeout is a Go duration string (e.g. "10s"). Default: "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`

	// SendRatePerSec caps outgoing messages during a sweep.
	// Telegram's broadcast guidance is ~30 msg/s; default is 25.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type DatabaseConfig struct {
	Path string `json:"path"`

	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the delivery sweep.
//
// Sweep accepts either a Go duration ("1m", "30s") or a cron expression
// ("*/1 * * * *"). Default: every minute.
type SchedulerConfig struct {
	Sweep string `json:"sweep,omitempty"`

	// DeliveryTimeout bounds a single send so one slow recipient cannot
	// stall the sweep. Default: "10s".
	DeliveryTimeout string `json:"delivery_timeout,omitempty"`

	// DefaultNotifyHour seeds new subscriber rows (0..23). Default: 9.
	DefaultNotifyHour *int `json:"default_notify_hour,omitempty"`
}

// OpenRouterConfig configures the chat-completions client used by /ask.
// The daily horoscope itself never calls out; it is generated locally.
type OpenRouterConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`

	// Timeout is a Go duration string for the whole request. Default: "30s".
	Timeout     string  `json:"timeout,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

const defaultNotifyHour = 9

// NotifyHourDefault returns the configured default hour clamped to 0..23.
func (c SchedulerConfig) NotifyHourDefault() int {
	if c.DefaultNotifyHour == nil {
		return defaultNotifyHour
	}
	h := *c.DefaultNotifyHour
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}
