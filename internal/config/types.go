package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the on-disk configuration (JSON or YAML).
// Durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Quiz      QuizConfig      `json:"quiz"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Stats     StatsConfig     `json:"stats"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`
	HTTP      HTTPConfig      `json:"http"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied via BOT_TOKEN.
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`
	// Workers is the number of sequential update shards.
	Workers        int    `json:"workers,omitempty"`
	HandlerTimeout string `json:"handler_timeout,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	// Components overrides level per component (quiz, dispatch, telegram.router, ...).
	Components map[string]string `json:"components,omitempty"`
	Console    bool              `json:"console"`
	JSON       bool              `json:"json,omitempty"`
	File       LoggingFile       `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// QuizModeConfig configures one game mode.
//
// Defaults:
//   - avatar: dir "pfps", rounds [5,20,50,100,150,200,300], next_round_delay "1500ms"
//   - art: dir "arts", rounds [5,20,40], next_round_delay "900ms", batch_delay "500ms"
type QuizModeConfig struct {
	Dir            string `json:"dir"`
	RoundOptions   []int  `json:"round_options,omitempty"`
	NextRoundDelay string `json:"next_round_delay,omitempty"`
	BatchDelay     string `json:"batch_delay,omitempty"`
}

type QuizConfig struct {
	Avatar          QuizModeConfig `json:"avatar"`
	Art             QuizModeConfig `json:"art"`
	CaptionsFile    string         `json:"captions_file"`
	TileSize        int            `json:"tile_size,omitempty"`
	ColdStartRounds int            `json:"cold_start_rounds,omitempty"`
	// LeastShownFirst is a pointer so an omitted key keeps the default (true).
	LeastShownFirst *bool  `json:"least_shown_first,omitempty"`
	SessionIdleTTL  string `json:"session_idle_ttl,omitempty"`
	Seed            int64  `json:"seed,omitempty"`
}

// DispatchConfig controls outbound retries and throttling.
type DispatchConfig struct {
	MaxAttempts   int     `json:"max_attempts,omitempty"`
	RatePerSec    float64 `json:"rate_per_sec,omitempty"`
	Burst         int     `json:"burst,omitempty"`
	MaxRetryAfter string  `json:"max_retry_after,omitempty"`
	CallTimeout   string  `json:"call_timeout,omitempty"`
}

// StatsConfig controls the async stats recorder.
type StatsConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

// StorageConfig selects the stats store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/quiz.db" }
type StorageConfig struct {
	Driver      string        `json:"driver"`
	Path        string        `json:"path,omitempty"`
	BusyTimeout string        `json:"busy_timeout,omitempty"` // sqlite
	Valkey      *ValkeyConfig `json:"valkey,omitempty"`
}

type ValkeyConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// SchedulerConfig controls periodic jobs. Specs are cron expressions
// (robfig/cron, with "@every 5m" style descriptors), durations like "10m" or HH:MM intervals.
type SchedulerConfig struct {
	Enabled         bool   `json:"enabled"`
	Timezone        string `json:"timezone,omitempty"`
	DescriptionSpec string `json:"description_spec,omitempty"`
	EvictionSpec    string `json:"eviction_spec,omitempty"`
	JobTimeout      string `json:"job_timeout,omitempty"`
}

// HTTPConfig controls the read-only stats API.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8080"
	// Token is required when Addr is not a loopback address.
	Token string `json:"token,omitempty"`
}

var knownLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

var knownDrivers = map[string]bool{"": true, "none": true, "memory": true, "file": true, "sqlite": true, "valkey": true}

// Validate checks values the decoder cannot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	for _, k := range durationKeys(cfg) {
		if _, err := ParseDurationField(k.path, k.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if lv := cfg.Logging.Level; lv != "" && !knownLevels[strings.ToLower(strings.TrimSpace(lv))] {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lv))
	}
	for comp, lv := range cfg.Logging.Components {
		if !knownLevels[strings.ToLower(strings.TrimSpace(lv))] {
			errs = append(errs, fmt.Errorf("logging.components.%s: unknown level %q", comp, lv))
		}
	}
	for name, m := range map[string]QuizModeConfig{"avatar": cfg.Quiz.Avatar, "art": cfg.Quiz.Art} {
		for _, n := range m.RoundOptions {
			if n <= 0 {
				errs = append(errs, fmt.Errorf("quiz.%s.round_options: %d must be > 0", name, n))
			}
		}
	}
	if cfg.Quiz.TileSize < 0 || cfg.Quiz.TileSize > 2048 {
		errs = append(errs, fmt.Errorf("quiz.tile_size: %d out of range 0..2048", cfg.Quiz.TileSize))
	}
	if cfg.Dispatch.RatePerSec < 0 {
		errs = append(errs, errors.New("dispatch.rate_per_sec must be >= 0"))
	}
	if cfg.Storage != nil {
		d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		if !knownDrivers[d] {
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
		if d == "valkey" && (cfg.Storage.Valkey == nil || strings.TrimSpace(cfg.Storage.Valkey.Addr) == "") {
			errs = append(errs, errors.New("storage.valkey.addr is required for valkey driver"))
		}
	}
	return errors.Join(errs...)
}
