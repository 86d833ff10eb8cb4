package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	svc, root := New(Config{
		Level:      "info",
		Components: map[string]string{"quiz": "debug", "Telegram": "warn"},
		Console:    true,
		JSON:       true,
		Out:        &buf,
	})
	defer svc.Close()

	root.Component("quiz").Debug("quiz-debug")
	root.Component("stats").Debug("stats-debug")
	root.Component("stats").Info("stats-info")
	root.Component("telegram.router").Info("router-info")
	root.Component("telegram.router").Warn("router-warn")

	out := buf.String()
	for _, want := range []string{"quiz-debug", "stats-info", "router-warn", `"comp":"telegram.router"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	for _, skip := range []string{"stats-debug", "router-info"} {
		if strings.Contains(out, skip) {
			t.Fatalf("output has %q:\n%s", skip, out)
		}
	}

	buf.Reset()
	svc.Apply(Config{Level: "info", Console: true, JSON: true, Out: &buf})
	root.Component("quiz").Debug("quiz-debug-after")
	root.Component("quiz").Info("quiz-info-after")
	if out := buf.String(); strings.Contains(out, "quiz-debug-after") || !strings.Contains(out, "quiz-info-after") {
		t.Fatalf("after Apply output = %s", out)
	}
}

func TestZeroAndNop(t *testing.T) {
	t.Parallel()

	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero Logger IsZero = false")
	}
	zero.Info("dropped")
	if Nop().IsZero() {
		t.Fatalf("Nop().IsZero() = true, want false")
	}
	Nop().Component("x").Error("dropped")
}

func TestComponentReplacesParent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	svc, root := New(Config{Level: "debug", Console: true, JSON: true, Out: &buf})
	defer svc.Close()

	root.Component("app").Component("config").Info("nested")
	out := buf.String()
	if strings.Count(out, `"comp"`) != 1 || !strings.Contains(out, `"comp":"config"`) {
		t.Fatalf("output = %s, want a single comp=config", out)
	}
}
