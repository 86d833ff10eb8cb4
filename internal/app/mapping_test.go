package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"quizbot/internal/config"
	"quizbot/internal/quiz"
)

func TestMapQuizConfigDefaults(t *testing.T) {
	t.Parallel()

	qc, err := mapQuizConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapQuizConfig: %v", err)
	}
	if qc.Avatar.Dir != "pfps" || qc.Art.Dir != "arts" {
		t.Fatalf("dirs = %q, %q, want pfps, arts", qc.Avatar.Dir, qc.Art.Dir)
	}
	if !reflect.DeepEqual(qc.Avatar.RoundOptions, []int{5, 20, 50, 100, 150, 200, 300}) {
		t.Fatalf("avatar rounds = %v", qc.Avatar.RoundOptions)
	}
	if !reflect.DeepEqual(qc.Art.RoundOptions, []int{5, 20, 40}) {
		t.Fatalf("art rounds = %v", qc.Art.RoundOptions)
	}
	if qc.Avatar.NextRoundDelay != 1500*time.Millisecond || qc.Art.NextRoundDelay != 900*time.Millisecond || qc.Art.BatchDelay != 500*time.Millisecond {
		t.Fatalf("delays = %+v / %+v", qc.Avatar, qc.Art)
	}
	if !qc.LeastShownFirst {
		t.Fatalf("LeastShownFirst = false, want true by default")
	}
}

func TestMapQuizConfigOverrides(t *testing.T) {
	t.Parallel()

	off := false
	qc, err := mapQuizConfig(&config.Config{Quiz: config.QuizConfig{
		Art:             config.QuizModeConfig{Dir: "/srv/art", RoundOptions: []int{3}, NextRoundDelay: "2s"},
		LeastShownFirst: &off,
		SessionIdleTTL:  "30m",
	}})
	if err != nil {
		t.Fatalf("mapQuizConfig: %v", err)
	}
	if qc.Art.Dir != "/srv/art" || qc.Art.NextRoundDelay != 2*time.Second || qc.Art.RoundOptions[0] != 3 {
		t.Fatalf("art = %+v", qc.Art)
	}
	if qc.LeastShownFirst || qc.SessionIdleTTL != 30*time.Minute {
		t.Fatalf("quiz = %+v", qc)
	}

	if _, err := mapQuizConfig(&config.Config{Quiz: config.QuizConfig{SessionIdleTTL: "soon"}}); err == nil {
		t.Fatalf("bad ttl error = nil, want error")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		driver  string
		err     bool
	}{
		{name: "absent"},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "memory", in: &config.StorageConfig{Driver: "memory"}, enabled: true, driver: "memory"},
		{name: "sqlite", in: &config.StorageConfig{Driver: "SQLite", Path: "q.db"}, enabled: true, driver: "sqlite"},
		{name: "sqlite without path", in: &config.StorageConfig{Driver: "sqlite"}, err: true},
		{name: "file without path", in: &config.StorageConfig{Driver: "file"}, err: true},
		{name: "valkey", in: &config.StorageConfig{Driver: "valkey", Valkey: &config.ValkeyConfig{Addr: "127.0.0.1:6379"}}, enabled: true, driver: "valkey"},
		{name: "valkey without addr", in: &config.StorageConfig{Driver: "valkey"}, err: true},
		{name: "unknown", in: &config.StorageConfig{Driver: "mongo"}, err: true},
	}
	for _, tt := range tests {
		sc, enabled, err := mapStorageConfig(&config.Config{Storage: tt.in})
		if tt.err {
			if err == nil {
				t.Fatalf("%s: error = nil, want error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if enabled != tt.enabled || sc.Driver != tt.driver {
			t.Fatalf("%s: got %q enabled=%v, want %q enabled=%v", tt.name, sc.Driver, enabled, tt.driver, tt.enabled)
		}
	}
}

func TestMapSchedulerConfig(t *testing.T) {
	t.Parallel()

	p, err := mapSchedulerConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapSchedulerConfig: %v", err)
	}
	if p.description != defaultDescriptionSpec || p.eviction != defaultEvictionSpec || p.cfg.DefaultTimeout != 30*time.Second {
		t.Fatalf("plan = %+v", p)
	}

	bad := []config.SchedulerConfig{
		{Timezone: "Mars/Olympus"},
		{EvictionSpec: "whenever"},
		{JobTimeout: "-1s"},
	}
	for _, sc := range bad {
		if _, err := mapSchedulerConfig(&config.Config{Scheduler: sc}); err == nil {
			t.Fatalf("mapSchedulerConfig(%+v) error = nil, want error", sc)
		}
	}
}

func TestMapDispatchConfigDefaults(t *testing.T) {
	t.Parallel()

	dc, err := mapDispatchConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapDispatchConfig: %v", err)
	}
	if dc.RatePerSec != 25 || dc.MaxRetryAfter != time.Minute || dc.CallTimeout != 30*time.Second {
		t.Fatalf("dispatch = %+v", dc)
	}
}

func TestLiveContentFollowsApply(t *testing.T) {
	t.Parallel()

	dirA, dirB := t.TempDir(), t.TempDir()
	write := func(dir, name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(dirA, "alice.jpg")
	write(dirB, "bob.jpg")
	write(dirB, "carol.png")

	lc := newLiveContent(quiz.Config{Avatar: quiz.ModeConfig{Dir: dirA}})
	ix, err := lc.Index(quiz.ModeAvatar)
	if err != nil || ix.Len() != 1 {
		t.Fatalf("Index = %v, %v, want 1 entity", ix, err)
	}

	lc.Apply(quiz.Config{Avatar: quiz.ModeConfig{Dir: dirB}})
	ix, err = lc.Index(quiz.ModeAvatar)
	if err != nil || ix.Len() != 2 {
		t.Fatalf("Index after Apply = %v, %v, want 2 entities", ix, err)
	}
}
