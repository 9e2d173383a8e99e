package config

// Settings is the static process configuration loaded from a JSON or YAML
// file. It does not contain the bot's mutable channel state (see
// internal/state) and it never contains the bot token: the token comes from
// the TELEGRAM_TOKEN environment variable only.
type Settings struct {
	Logging  LoggingSettings  `json:"logging"`
	Telegram TelegramSettings `json:"telegram"`

	// StatePath is where the mutable channel-manager record lives.
	StatePath string `json:"state_path"`

	Scheduler SchedulerSettings `json:"scheduler"`
	Storage   *StorageSettings  `json:"storage,omitempty"`
}

type LoggingSettings struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type TelegramSettings struct {
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// RatePerSec caps outbound Bot API calls. 0 keeps the default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type SchedulerSettings struct {
	Workers     int `json:"workers,omitempty"`
	HistorySize int `json:"history_size,omitempty"`
	// Timezone is an IANA TZ name, e.g. "Asia/Jakarta". Empty means local.
	Timezone string `json:"timezone,omitempty"`
}

// StorageSettings controls the optional audit persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./bot_audit.db" }
type StorageSettings struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Default returns the settings used when no file exists at the given path.
func Default() *Settings {
	return &Settings{
		Logging:   LoggingSettings{Level: "info", Console: true},
		Telegram:  TelegramSettings{PollTimeout: "10s"},
		StatePath: "./config.json",
	}
}
