// Package stats keeps per-entity answer statistics.
//
// Updates are read-modify-write against storage.Store. Two processes updating
// the same entity at once may lose an increment (last writer wins); within one
// process the Recorder serializes writes per entity.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"quizbot/internal/storage"
)

var ErrNoStore = errors.New("stats: no store configured")

// Outcome is one answered round.
type Outcome struct {
	Mode     string
	EntityID string
	Label    string
	Correct  bool
}

// Percent returns round(100*correct/total), 0 when total is 0.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(correct)*100/float64(total) + 0.5))
}

// Apply returns rec updated with one more outcome. An absent record is all zeros.
func Apply(rec storage.StatRecord, o Outcome, now time.Time) storage.StatRecord {
	rec.Mode = o.Mode
	rec.EntityID = o.EntityID
	if strings.TrimSpace(o.Label) != "" {
		rec.Label = o.Label
	}
	if o.Correct {
		rec.Correct++
	} else {
		rec.Incorrect++
	}
	rec.Total++
	rec.Percent = Percent(rec.Correct, rec.Total)
	rec.UpdatedAt = now
	return rec
}

// Aggregator applies outcomes to the store.
type Aggregator struct {
	store storage.Store
	now   func() time.Time
}

func NewAggregator(store storage.Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// RecordOutcome reads the entity's record, applies o and writes it back.
func (a *Aggregator) RecordOutcome(ctx context.Context, o Outcome) (storage.StatRecord, error) {
	if a == nil || a.store == nil {
		return storage.StatRecord{}, ErrNoStore
	}
	if o.EntityID == "" {
		return storage.StatRecord{}, errors.New("stats: empty entity id")
	}
	cur, _, err := a.store.GetStat(ctx, o.Mode, o.EntityID)
	if err != nil {
		return storage.StatRecord{}, fmt.Errorf("stats: read %s/%s: %w", o.Mode, o.EntityID, err)
	}
	next := Apply(cur, o, a.now())
	if err := a.store.PutStat(ctx, next); err != nil {
		return storage.StatRecord{}, fmt.Errorf("stats: write %s/%s: %w", o.Mode, o.EntityID, err)
	}
	return next, nil
}

// ShowCounts returns how many rounds each entity of mode has been shown in.
func (a *Aggregator) ShowCounts(ctx context.Context, mode string) (map[string]int, error) {
	if a == nil || a.store == nil {
		return nil, ErrNoStore
	}
	recs, err := a.store.ListStats(ctx, mode)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(recs))
	for _, r := range recs {
		out[r.EntityID] = r.Total
	}
	return out, nil
}
