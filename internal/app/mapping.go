package app

import (
	"fmt"
	"strings"
	"time"

	"quizbot/internal/config"
	"quizbot/internal/dispatch"
	"quizbot/internal/httpapi"
	"quizbot/internal/quiz"
	"quizbot/internal/scheduler"
	"quizbot/internal/stats"
	"quizbot/internal/storage"
	logx "quizbot/pkg/logx"
)

var (
	defaultAvatarRounds = []int{5, 20, 50, 100, 150, 200, 300}
	defaultArtRounds    = []int{5, 20, 40}
)

const (
	defaultDescriptionSpec = "@every 10m"
	defaultEvictionSpec    = "@every 5m"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:      cfg.Logging.Level,
		Components: cfg.Logging.Components,
		Console:    cfg.Logging.Console,
		JSON:       cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "memory":
		return storage.Config{Driver: driver}, true, nil
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	case "valkey", "redis":
		if sc.Valkey == nil || strings.TrimSpace(sc.Valkey.Addr) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.valkey.addr is required when storage.driver=valkey")
		}
		return storage.Config{Driver: "valkey", Valkey: storage.ValkeyConfig{
			Addr:     sc.Valkey.Addr,
			Password: sc.Valkey.Password,
			DB:       sc.Valkey.DB,
			Prefix:   sc.Valkey.Prefix,
		}}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapModeConfig(name string, mc config.QuizModeConfig, defDir string, defRounds []int, defNext, defBatch time.Duration) (quiz.ModeConfig, error) {
	next, err := config.ParseDurationOrDefault("quiz."+name+".next_round_delay", mc.NextRoundDelay, defNext)
	if err != nil {
		return quiz.ModeConfig{}, err
	}
	batch, err := config.ParseDurationOrDefault("quiz."+name+".batch_delay", mc.BatchDelay, defBatch)
	if err != nil {
		return quiz.ModeConfig{}, err
	}
	dir := strings.TrimSpace(mc.Dir)
	if dir == "" {
		dir = defDir
	}
	rounds := mc.RoundOptions
	if len(rounds) == 0 {
		rounds = defRounds
	}
	return quiz.ModeConfig{Dir: dir, RoundOptions: append([]int(nil), rounds...), NextRoundDelay: next, BatchDelay: batch}, nil
}

func mapQuizConfig(cfg *config.Config) (quiz.Config, error) {
	qc := cfg.Quiz
	avatar, err := mapModeConfig("avatar", qc.Avatar, "pfps", defaultAvatarRounds, 1500*time.Millisecond, 0)
	if err != nil {
		return quiz.Config{}, err
	}
	art, err := mapModeConfig("art", qc.Art, "arts", defaultArtRounds, 900*time.Millisecond, 500*time.Millisecond)
	if err != nil {
		return quiz.Config{}, err
	}
	ttl, err := config.ParseDurationOrDefault("quiz.session_idle_ttl", qc.SessionIdleTTL, 6*time.Hour)
	if err != nil {
		return quiz.Config{}, err
	}
	leastShown := true
	if qc.LeastShownFirst != nil {
		leastShown = *qc.LeastShownFirst
	}
	return quiz.Config{
		Avatar:          avatar,
		Art:             art,
		CaptionsFile:    strings.TrimSpace(qc.CaptionsFile),
		TileSize:        qc.TileSize,
		ColdStartRounds: qc.ColdStartRounds,
		LeastShownFirst: leastShown,
		SessionIdleTTL:  ttl,
		Seed:            qc.Seed,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	dc := cfg.Dispatch
	maxAfter, err := config.ParseDurationOrDefault("dispatch.max_retry_after", dc.MaxRetryAfter, time.Minute)
	if err != nil {
		return dispatch.Config{}, err
	}
	callTimeout, err := config.ParseDurationOrDefault("dispatch.call_timeout", dc.CallTimeout, 30*time.Second)
	if err != nil {
		return dispatch.Config{}, err
	}
	rate := dc.RatePerSec
	if rate == 0 {
		rate = 25
	}
	return dispatch.Config{
		MaxAttempts:   dc.MaxAttempts,
		RatePerSec:    rate,
		Burst:         dc.Burst,
		MaxRetryAfter: maxAfter,
		CallTimeout:   callTimeout,
	}, nil
}

func mapStatsConfig(cfg *config.Config) (stats.RecorderConfig, error) {
	sc := cfg.Stats
	write, err := config.ParseDurationField("stats.write_timeout", sc.WriteTimeout)
	if err != nil {
		return stats.RecorderConfig{}, err
	}
	base, err := config.ParseDurationField("stats.retry_base", sc.RetryBase)
	if err != nil {
		return stats.RecorderConfig{}, err
	}
	maxDelay, err := config.ParseDurationField("stats.retry_max_delay", sc.RetryMaxDelay)
	if err != nil {
		return stats.RecorderConfig{}, err
	}
	retries := sc.RetryMax
	if retries == 0 {
		retries = 3
	}
	return stats.RecorderConfig{
		Workers:       sc.Workers,
		QueueSize:     sc.QueueSize,
		WriteTimeout:  write,
		RetryMax:      retries,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
	}, nil
}

type schedulePlan struct {
	cfg         scheduler.Config
	description string
	eviction    string
}

func mapSchedulerConfig(cfg *config.Config) (schedulePlan, error) {
	sc := cfg.Scheduler
	timeout, err := config.ParseDurationOrDefault("scheduler.job_timeout", sc.JobTimeout, 30*time.Second)
	if err != nil {
		return schedulePlan{}, err
	}
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return schedulePlan{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	p := schedulePlan{
		cfg:         scheduler.Config{Timezone: sc.Timezone, DefaultTimeout: timeout},
		description: strings.TrimSpace(sc.DescriptionSpec),
		eviction:    strings.TrimSpace(sc.EvictionSpec),
	}
	if p.description == "" {
		p.description = defaultDescriptionSpec
	}
	if p.eviction == "" {
		p.eviction = defaultEvictionSpec
	}
	for key, spec := range map[string]string{"scheduler.description_spec": p.description, "scheduler.eviction_spec": p.eviction} {
		if _, err := scheduler.ParseSchedule(spec); err != nil {
			return schedulePlan{}, fmt.Errorf("%s: %w", key, err)
		}
	}
	return p, nil
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	return httpapi.Config{
		Enabled: cfg.HTTP.Enabled,
		Addr:    cfg.HTTP.Addr,
		Token:   cfg.HTTP.Token,
	}
}

// validate is the reload gate: a config that fails any mapping is rejected.
func validate(cfg *config.Config) error {
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapQuizConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStatsConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	return nil
}
