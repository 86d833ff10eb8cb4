package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  poll_timeout: 10s
logging:
  level: debug
  console: true
quiz:
  avatar:
    dir: ./pfps
    round_options: [5, 20, 50]
    next_round_delay: 1500ms
  art:
    dir: ./arts
    round_options: [5, 20, 40]
    batch_delay: 500ms
  captions_file: ./captions.json
  least_shown_first: false
storage:
  driver: sqlite
  path: ./data/quiz.db
scheduler:
  enabled: true
  description_spec: "@every 10m"
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("quizbot.yaml", []byte(sampleYAML), func(c *Config) { c.Telegram.Token = "from-env" })
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("Token = %q, want overlay value", cfg.Telegram.Token)
	}
	if len(cfg.Quiz.Avatar.RoundOptions) != 3 || cfg.Quiz.Art.BatchDelay != "500ms" {
		t.Fatalf("quiz = %+v", cfg.Quiz)
	}
	if cfg.Quiz.LeastShownFirst == nil || *cfg.Quiz.LeastShownFirst {
		t.Fatalf("LeastShownFirst = %v, want explicit false", cfg.Quiz.LeastShownFirst)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, path, body, want string
	}{
		{"unknown field", "c.json", `{"quiz":{"tile":1}}`, "unknown field"},
		{"trailing data", "c.json", `{} {}`, "trailing"},
		{"bad duration", "c.json", `{"quiz":{"session_idle_ttl":"soon"}}`, "quiz.session_idle_ttl"},
		{"bad driver", "c.yml", "storage:\n  driver: mongo\n", "unknown driver"},
		{"valkey without addr", "c.json", `{"storage":{"driver":"valkey"}}`, "valkey.addr"},
		{"zero round option", "c.json", `{"quiz":{"art":{"round_options":[0]}}}`, "round_options"},
		{"duplicate yaml key", "c.yaml", "quiz:\n  tile_size: 256\n  tile_size: 512\n", "tile_size"},
		{"unknown level", "c.json", `{"logging":{"components":{"quiz":"loud"}}}`, "logging.components.quiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.path, []byte(tt.body), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Decode error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestReloadPublishesChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quizbot.json")
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatalf("unchanged config was published")
	default:
	}

	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(time.Second):
		t.Fatalf("changed config not published")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("Get().Logging.Level = %q, want debug", m.Get().Logging.Level)
	}

	changed, _ := SummarizeChange(&Config{Logging: LoggingConfig{Level: "info"}}, m.Get())
	if len(changed) != 1 || changed[0] != "logging" {
		t.Fatalf("SummarizeChange = %v, want [logging]", changed)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "250ms", time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("250ms = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "1500", time.Second); err != nil || d != 1500*time.Millisecond {
		t.Fatalf("1500 = %v, %v, want 1.5s", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-1s", time.Second); err == nil {
		t.Fatalf("negative duration accepted")
	}
	if _, err := ParseDurationOrDefault("x", "-5", time.Second); err == nil {
		t.Fatalf("negative milliseconds accepted")
	}
}

func TestDecodeYAMLAliasesAndEmpty(t *testing.T) {
	t.Parallel()

	body := "quiz:\n  avatar:\n    round_options: &rounds [5, 20]\n  art:\n    round_options: *rounds\n"
	cfg, err := Decode("c.yaml", []byte(body), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cfg.Quiz.Art.RoundOptions) != 2 || cfg.Quiz.Art.RoundOptions[1] != 20 {
		t.Fatalf("art rounds = %v, want alias of [5 20]", cfg.Quiz.Art.RoundOptions)
	}
	if _, err := Decode("empty.yml", nil, nil); err != nil {
		t.Fatalf("Decode(empty) = %v, want nil", err)
	}
}
