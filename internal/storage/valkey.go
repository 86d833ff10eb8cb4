package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	logx "quizbot/pkg/logx"
)

const maxResults = 10000

// valkeyStore keeps one hash per record:
//
//	<prefix>:stat:<mode>:<id>  hash of record fields
//	<prefix>:stats:<mode>      set of entity ids
//	<prefix>:modes             set of modes
//	<prefix>:results           capped list of JSON game results
type valkeyStore struct {
	client valkey.Client
	prefix string
	log    logx.Logger
}

func openValkey(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Valkey.Addr)
	if addr == "" {
		return nil, errors.New("storage.valkey.addr is required for valkey driver")
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    cfg.Valkey.Password,
		SelectDB:    cfg.Valkey.DB,
	})
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(cfg.Valkey.Prefix)
	if prefix == "" {
		prefix = "quizbot"
	}
	log.Debug("valkey connected", logx.String("addr", addr))
	return &valkeyStore{client: client, prefix: prefix, log: log}, nil
}

func (s *valkeyStore) statKey(mode, id string) string { return s.prefix + ":stat:" + mode + ":" + id }
func (s *valkeyStore) indexKey(mode string) string    { return s.prefix + ":stats:" + mode }
func (s *valkeyStore) modesKey() string               { return s.prefix + ":modes" }

func (s *valkeyStore) Close() error {
	s.client.Close()
	return nil
}

func (s *valkeyStore) GetStat(ctx context.Context, mode, id string) (StatRecord, bool, error) {
	m, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.statKey(mode, id)).Build()).AsStrMap()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return StatRecord{}, false, nil
		}
		return StatRecord{}, false, err
	}
	if len(m) == 0 {
		return StatRecord{}, false, nil
	}
	return recordFromHash(mode, id, m), true, nil
}

func (s *valkeyStore) PutStat(ctx context.Context, rec StatRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	b := s.client.B()
	cmds := []valkey.Completed{
		b.Hset().Key(s.statKey(rec.Mode, rec.EntityID)).FieldValue().
			FieldValue("label", rec.Label).
			FieldValue("correct", strconv.Itoa(rec.Correct)).
			FieldValue("incorrect", strconv.Itoa(rec.Incorrect)).
			FieldValue("total", strconv.Itoa(rec.Total)).
			FieldValue("percent", strconv.Itoa(rec.Percent)).
			FieldValue("updated_at", strconv.FormatInt(rec.UpdatedAt.UnixMilli(), 10)).
			Build(),
		b.Sadd().Key(s.indexKey(rec.Mode)).Member(rec.EntityID).Build(),
		b.Sadd().Key(s.modesKey()).Member(rec.Mode).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (s *valkeyStore) ListStats(ctx context.Context, mode string) ([]StatRecord, error) {
	modes := []string{mode}
	if mode == "" {
		all, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.modesKey()).Build()).AsStrSlice()
		if err != nil {
			return nil, err
		}
		modes = all
	}

	var out []StatRecord
	for _, m := range modes {
		ids, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.indexKey(m)).Build()).AsStrSlice()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		cmds := make([]valkey.Completed, 0, len(ids))
		for _, id := range ids {
			cmds = append(cmds, s.client.B().Hgetall().Key(s.statKey(m, id)).Build())
		}
		for i, res := range s.client.DoMulti(ctx, cmds...) {
			h, err := res.AsStrMap()
			if err != nil {
				return nil, err
			}
			if len(h) == 0 {
				continue
			}
			out = append(out, recordFromHash(m, ids[i], h))
		}
	}
	sortStats(out)
	return out, nil
}

func (s *valkeyStore) AppendResult(ctx context.Context, r GameResult) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	key := s.prefix + ":results"
	for _, res := range s.client.DoMulti(ctx,
		s.client.B().Lpush().Key(key).Element(string(b)).Build(),
		s.client.B().Ltrim().Key(key).Start(0).Stop(maxResults-1).Build(),
	) {
		if err := res.Error(); err != nil {
			return err
		}
	}
	return nil
}

func recordFromHash(mode, id string, h map[string]string) StatRecord {
	atoi := func(k string) int {
		n, _ := strconv.Atoi(h[k])
		return n
	}
	ms, _ := strconv.ParseInt(h["updated_at"], 10, 64)
	return StatRecord{
		Mode:      mode,
		EntityID:  id,
		Label:     h["label"],
		Correct:   atoi("correct"),
		Incorrect: atoi("incorrect"),
		Total:     atoi("total"),
		Percent:   atoi("percent"),
		UpdatedAt: time.UnixMilli(ms),
	}
}
