package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "quizbot/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	out := map[string]Store{"memory": NewMemory()}

	fs, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "file", "quiz.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	out["file"] = fs

	ss, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "sqlite", "quiz.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	out["sqlite"] = ss

	t.Cleanup(func() {
		for _, st := range out {
			_ = st.Close()
		}
	})
	return out
}

func TestStatRoundTrip(t *testing.T) {
	t.Parallel()

	for name, st := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := st.GetStat(ctx, "art", "alice"); err != nil || ok {
				t.Fatalf("GetStat(missing) = ok %v, err %v, want false, nil", ok, err)
			}

			rec := StatRecord{Mode: "art", EntityID: "alice", Label: "Alice", Correct: 2, Incorrect: 1, Total: 3, Percent: 67, UpdatedAt: time.UnixMilli(1700000000000)}
			if err := st.PutStat(ctx, rec); err != nil {
				t.Fatalf("PutStat: %v", err)
			}
			rec.Correct, rec.Total, rec.Percent = 3, 4, 75
			if err := st.PutStat(ctx, rec); err != nil {
				t.Fatalf("PutStat update: %v", err)
			}
			if err := st.PutStat(ctx, StatRecord{Mode: "avatar", EntityID: "bob", Total: 1, Incorrect: 1}); err != nil {
				t.Fatalf("PutStat bob: %v", err)
			}

			got, ok, err := st.GetStat(ctx, "art", "alice")
			if err != nil || !ok {
				t.Fatalf("GetStat = ok %v, err %v, want true, nil", ok, err)
			}
			if got.Correct != 3 || got.Total != 4 || got.Percent != 75 || got.Label != "Alice" {
				t.Fatalf("GetStat = %+v, want correct=3 total=4 percent=75", got)
			}

			art, err := st.ListStats(ctx, "art")
			if err != nil {
				t.Fatalf("ListStats(art): %v", err)
			}
			if len(art) != 1 || art[0].EntityID != "alice" {
				t.Fatalf("ListStats(art) = %+v, want [alice]", art)
			}
			all, err := st.ListStats(ctx, "")
			if err != nil {
				t.Fatalf("ListStats(all): %v", err)
			}
			if len(all) != 2 || all[0].Mode != "art" || all[1].Mode != "avatar" {
				t.Fatalf("ListStats(all) = %+v, want art then avatar", all)
			}

			if err := st.AppendResult(ctx, GameResult{UserID: 7, Mode: "art", Score: 1, Rounds: 1}); err != nil {
				t.Fatalf("AppendResult: %v", err)
			}
		})
	}
}

func TestFileStoreReplaysJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quiz.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := st.PutStat(ctx, StatRecord{Mode: "avatar", EntityID: "carol", Correct: i, Total: i, Percent: 100}); err != nil {
			t.Fatalf("PutStat: %v", err)
		}
	}
	// Simulate a crash: the journal is never compacted.
	fs := st.(*fileStore)
	fs.mu.Lock()
	_ = fs.journalFile.Close()
	fs.journalFile = nil
	fs.mu.Unlock()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, ok, err := st2.GetStat(ctx, "avatar", "carol")
	if err != nil || !ok {
		t.Fatalf("GetStat after reopen = ok %v, err %v", ok, err)
	}
	if got.Correct != 3 {
		t.Fatalf("Correct = %d, want 3", got.Correct)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if st != nil || err != nil {
		t.Fatalf("Open(none) = %v, %v, want nil, nil", st, err)
	}
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatalf("Open(mongo) error = nil, want error")
	}
	if _, err := Open(Config{Driver: "valkey"}, logx.Nop()); err == nil {
		t.Fatalf("Open(valkey) without addr error = nil, want error")
	}
}
