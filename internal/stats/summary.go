package stats

import (
	"context"
	"fmt"

	"quizbot/internal/storage"
)

// Overview summarizes all recorded rounds.
type Overview struct {
	Rounds   int            `json:"rounds"`
	Correct  int            `json:"correct"`
	Entities int            `json:"entities"`
	PerMode  map[string]int `json:"per_mode"`
}

// Average returns rounds per entity, given the number of known entities.
// Zero known entities falls back to the number of recorded ones.
func (o Overview) Average(known int) float64 {
	if known <= 0 {
		known = o.Entities
	}
	if known <= 0 {
		return 0
	}
	return float64(o.Rounds) / float64(known)
}

// Describe renders the short bot description.
func (o Overview) Describe(known int) string {
	return fmt.Sprintf("Rounds played: %d. Avg per entity: %.1f", o.Rounds, o.Average(known))
}

// Summarize aggregates every stat record in the store.
func Summarize(ctx context.Context, store storage.Store) (Overview, error) {
	if store == nil {
		return Overview{}, ErrNoStore
	}
	recs, err := store.ListStats(ctx, "")
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{PerMode: map[string]int{}}
	for _, r := range recs {
		ov.Rounds += r.Total
		ov.Correct += r.Correct
		ov.PerMode[r.Mode] += r.Total
		ov.Entities++
	}
	return ov, nil
}
