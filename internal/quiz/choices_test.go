package quiz

import (
	"fmt"
	"testing"
)

func count(ids []string, id string) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}

func TestBuildChoicesThreeEntities(t *testing.T) {
	t.Parallel()

	r := NewRand(1)
	all := []string{"alice", "bob", "carol"}
	positions := map[int]bool{}
	for i := 0; i < 200; i++ {
		got := BuildChoices(r, "bob", all)
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if count(got, "bob") != 1 {
			t.Fatalf("choices %v contain bob %d times", got, count(got, "bob"))
		}
		for j, id := range got {
			if id == "bob" {
				positions[j] = true
			}
		}
	}
	if len(positions) != 3 {
		t.Fatalf("bob seen at positions %v, want all of 0..2", positions)
	}
}

func TestBuildChoicesCapsAtFour(t *testing.T) {
	t.Parallel()

	r := NewRand(2)
	var all []string
	for i := 0; i < 10; i++ {
		all = append(all, fmt.Sprintf("e%02d", i))
	}
	got := BuildChoices(r, "e05", all)
	if len(got) != MaxChoices {
		t.Fatalf("len = %d, want %d", len(got), MaxChoices)
	}
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate %q in %v", id, got)
		}
		seen[id] = true
	}
	if !seen["e05"] {
		t.Fatalf("correct id missing from %v", got)
	}
	if got := BuildChoices(r, "solo", []string{"solo"}); len(got) != 1 || got[0] != "solo" {
		t.Fatalf("single entity choices = %v, want [solo]", got)
	}
}

func TestPickCollage(t *testing.T) {
	t.Parallel()

	r := NewRand(3)
	for i := 0; i < 50; i++ {
		order, pos := PickCollage(r, "a", []string{"a", "b"})
		if len(order) != 4 {
			t.Fatalf("len(order) = %d, want 4", len(order))
		}
		if pos < 1 || pos > 4 || order[pos-1] != "a" || count(order, "a") != 1 {
			t.Fatalf("order %v pos %d", order, pos)
		}
	}
	order, pos := PickCollage(r, "a", []string{"a"})
	if len(order) != 1 || pos != 1 {
		t.Fatalf("lone entity = %v, %d, want [a], 1", order, pos)
	}
}

func TestSampleWithoutIsReproducible(t *testing.T) {
	t.Parallel()

	pool := []int{1, 2, 3, 4, 5, 6}
	a := SampleWithout(NewRand(42), pool, 3)
	b := SampleWithout(NewRand(42), pool, 3)
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Fatalf("same seed gave %v and %v", a, b)
	}
	if got := SampleWithout(NewRand(1), pool, 10); len(got) != len(pool) {
		t.Fatalf("k > len(pool) gave %d items", len(got))
	}
	if fmt.Sprint(pool) != "[1 2 3 4 5 6]" {
		t.Fatalf("pool modified: %v", pool)
	}
}
