package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "quizbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.results.jsonl       (append-only JSON Lines)
//   - <prefix>.stats.snapshot.json (periodic snapshot)
//   - <prefix>.stats.journal.jsonl (append-only journal of full records)
//
// The journal is compacted into the snapshot every compactEvery writes and on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	resultsFile *os.File

	snapshotPath string
	journalFile  *os.File
	stats        map[string]StatRecord

	writes       int
	compactEvery int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	rf, err := os.OpenFile(prefix+".results.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	snapPath := prefix + ".stats.snapshot.json"
	journalPath := prefix + ".stats.journal.jsonl"

	stats := map[string]StatRecord{}
	if err := loadSnapshot(snapPath, stats); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("stats snapshot unreadable", logx.String("path", snapPath), logx.Err(err))
	}
	if err := replayJournal(journalPath, stats); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("stats journal unreadable", logx.String("path", journalPath), logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}

	return &fileStore{
		log:          log,
		resultsFile:  rf,
		snapshotPath: snapPath,
		journalFile:  jf,
		stats:        stats,
		compactEvery: 500,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.journalFile != nil {
		if s.writes > 0 {
			errs = append(errs, s.compactLocked())
		}
		errs = append(errs, s.journalFile.Close())
		s.journalFile = nil
	}
	if s.resultsFile != nil {
		errs = append(errs, s.resultsFile.Close())
		s.resultsFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) GetStat(_ context.Context, mode, id string) (StatRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stats[statKey(mode, id)]
	return rec, ok, nil
}

func (s *fileStore) PutStat(_ context.Context, rec StatRecord) error {
	if strings.TrimSpace(rec.EntityID) == "" {
		return errors.New("stat record without entity id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("stats journal closed")
	}
	if err := json.NewEncoder(s.journalFile).Encode(rec); err != nil {
		return err
	}
	s.stats[statKey(rec.Mode, rec.EntityID)] = rec

	s.writes++
	if s.writes%s.compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("stats compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) ListStats(_ context.Context, mode string) ([]StatRecord, error) {
	s.mu.Lock()
	out := make([]StatRecord, 0, len(s.stats))
	for _, rec := range s.stats {
		if mode == "" || rec.Mode == mode {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()
	sortStats(out)
	return out, nil
}

func (s *fileStore) AppendResult(_ context.Context, r GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultsFile == nil {
		return errors.New("results file closed")
	}
	return json.NewEncoder(s.resultsFile).Encode(r)
}

func (s *fileStore) compactLocked() error {
	recs := make([]StatRecord, 0, len(s.stats))
	for _, rec := range s.stats {
		recs = append(recs, rec)
	}
	sortStats(recs)

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(recs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]StatRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var recs []StatRecord
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		return err
	}
	for _, rec := range recs {
		out[statKey(rec.Mode, rec.EntityID)] = rec
	}
	return nil
}

func replayJournal(path string, out map[string]StatRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec StatRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil || rec.EntityID == "" {
			continue
		}
		out[statKey(rec.Mode, rec.EntityID)] = rec
	}
	return sc.Err()
}
