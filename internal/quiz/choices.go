package quiz

import "slices"

// MaxChoices is the number of answer buttons per round.
const MaxChoices = 4

// BuildChoices returns correctID plus up to three distractors drawn without
// replacement from allIDs, in random order.
func BuildChoices(r *Rand, correctID string, allIDs []string) []string {
	seen := make(map[string]struct{}, len(allIDs))
	var others []string
	for _, id := range allIDs {
		if id == correctID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		others = append(others, id)
	}
	out := append(SampleWithout(r, others, MaxChoices-1), correctID)
	Shuffle(r, out)
	return out
}

// PickCollage picks three extra entities with replacement from pool and
// returns the four ids in display order plus the 1-based position of correctID.
// Without other entities the collage shows only the correct one.
func PickCollage(r *Rand, correctID string, pool []string) (order []string, correctPos int) {
	others := without(pool, correctID)
	order = append(SampleWith(r, others, MaxChoices-1), correctID)
	Shuffle(r, order)
	return order, slices.Index(order, correctID) + 1
}
