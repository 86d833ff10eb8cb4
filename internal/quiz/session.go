package quiz

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	kit "quizbot/internal/transport"
)

var (
	ErrNoEntities = errors.New("quiz: no entities")
	ErrNoMedia    = errors.New("quiz: entity has no media")
	ErrNotInRound = errors.New("quiz: session is not waiting for a round")
)

type Stage int

const (
	StageIdle Stage = iota
	StageAwaitingRoundCount
	StageAwaitingBatchSize
	StageInRound
	StageFinished
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAwaitingRoundCount:
		return "awaiting_round_count"
	case StageAwaitingBatchSize:
		return "awaiting_batch_size"
	case StageInRound:
		return "in_round"
	case StageFinished:
		return "finished"
	}
	return "unknown"
}

type Pending int

const (
	PendingNone Pending = iota
	PendingRoundCount
	PendingBatchSize
)

// MaxBatchSize caps explicit batch sizes; BatchAll selects every media item.
const (
	MaxBatchSize = 3
	BatchAll     = 0
)

// Token correlates an answer with the round it was rendered for.
type Token struct {
	Round int
	Seq   int
}

func (t Token) String() string { return strconv.Itoa(t.Round) + "." + strconv.Itoa(t.Seq) }

func ParseToken(s string) (Token, error) {
	a, b, ok := strings.Cut(s, ".")
	if !ok {
		return Token{}, fmt.Errorf("bad round token %q", s)
	}
	r, err1 := strconv.Atoi(a)
	q, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil || r <= 0 {
		return Token{}, fmt.Errorf("bad round token %q", s)
	}
	return Token{Round: r, Seq: q}, nil
}

// Round is the content of one drawn round.
type Round struct {
	Number     int
	Total      int
	Token      Token
	EntityID   string
	Label      string
	Batch      []MediaItem
	Choices    []string
	CorrectPos int
}

// Result is the outcome of one answer.
type Result struct {
	Round     int
	Total     int
	Score     int
	Correct   bool
	EntityID  string
	Label     string
	Chosen    string
	Finished  bool
	Remaining int
}

// Session is one user's game. It holds no locks; callers serialize access
// through SessionStore.
type Session struct {
	ID       string
	UserID   int64
	Username string
	Chat     kit.ChatTarget
	Mode     Mode

	Stage        Stage
	TotalRounds  int
	CurrentRound int
	Score        int
	BatchSize    int

	Used       map[string]struct{}
	Current    string
	Batch      []MediaItem
	Choices    []string
	CorrectPos int

	// ShowCounts is a snapshot of historical show counts, nil when unavailable.
	ShowCounts      map[string]int
	ColdStartRounds int

	StartedAt  time.Time
	LastActive time.Time

	index *Index
	token Token
	open  bool
}

func NewSession(id string, userID int64, ix *Index, now time.Time) *Session {
	return &Session{
		ID:              id,
		UserID:          userID,
		Mode:            ix.Mode(),
		Stage:           StageAwaitingRoundCount,
		Used:            map[string]struct{}{},
		ColdStartRounds: 5,
		StartedAt:       now,
		LastActive:      now,
		index:           ix,
	}
}

func (s *Session) Index() *Index { return s.index }

func (s *Session) Pending() Pending {
	switch s.Stage {
	case StageAwaitingRoundCount:
		return PendingRoundCount
	case StageAwaitingBatchSize:
		return PendingBatchSize
	}
	return PendingNone
}

// Open reports whether a round is on screen and awaiting its answer.
func (s *Session) Open() bool { return s.open }

// Token returns the token of the open round.
func (s *Session) Token() Token { return s.token }

// RoundOptions returns the thresholds not above total, ascending and
// deduplicated, followed by total itself ("all").
func RoundOptions(thresholds []int, total int) []int {
	if total <= 0 {
		return nil
	}
	var out []int
	for _, n := range thresholds {
		if n > 0 && n < total && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return append(out, total)
}

// SelectRoundCount fixes the number of rounds. It returns false when the
// session is not waiting for a round count.
func (s *Session) SelectRoundCount(n int) bool {
	if s.Stage != StageAwaitingRoundCount {
		return false
	}
	s.TotalRounds = max(1, min(n, s.index.Len()))
	s.CurrentRound = 0
	s.Score = 0
	clear(s.Used)
	s.Current = ""
	if s.Mode.MultiAsset() {
		s.Stage = StageAwaitingBatchSize
	} else {
		s.Stage = StageInRound
	}
	return true
}

// SelectBatchSize fixes media per round: BatchAll or 1..MaxBatchSize.
func (s *Session) SelectBatchSize(size int) bool {
	if s.Stage != StageAwaitingBatchSize {
		return false
	}
	if size != BatchAll {
		size = max(1, min(size, MaxBatchSize))
	}
	s.BatchSize = size
	s.Stage = StageInRound
	return true
}

// NextRound draws the next entity and fixes its batch and choices.
func (s *Session) NextRound(r *Rand) (Round, error) {
	if s.Stage != StageInRound || s.open {
		return Round{}, ErrNotInRound
	}
	id, err := s.draw(r)
	if err != nil {
		return Round{}, err
	}
	e, _ := s.index.Entity(id)
	if e == nil || len(e.Media) == 0 {
		return Round{}, fmt.Errorf("%w: %s", ErrNoMedia, id)
	}

	n := len(e.Media)
	if s.BatchSize != BatchAll && s.BatchSize < n {
		n = max(1, s.BatchSize)
	}
	batch := append([]MediaItem(nil), e.Media[:n]...)

	var choices []string
	var pos int
	if s.Mode == ModeAvatar {
		choices, pos = PickCollage(r, id, s.index.IDs())
	} else {
		choices = BuildChoices(r, id, s.index.IDs())
		pos = slices.Index(choices, id) + 1
	}

	s.Current = id
	s.Batch = batch
	s.Choices = choices
	s.CorrectPos = pos
	s.token = Token{Round: s.CurrentRound + 1, Seq: batch[0].Seq}
	s.open = true

	return s.round(), nil
}

// CurrentRoundView re-renders the open round without redrawing.
func (s *Session) CurrentRoundView() (Round, bool) {
	if !s.open {
		return Round{}, false
	}
	return s.round(), true
}

func (s *Session) round() Round {
	return Round{
		Number:     s.token.Round,
		Total:      s.TotalRounds,
		Token:      s.token,
		EntityID:   s.Current,
		Label:      s.index.Label(s.Current),
		Batch:      append([]MediaItem(nil), s.Batch...),
		Choices:    append([]string(nil), s.Choices...),
		CorrectPos: s.CorrectPos,
	}
}

// Answer scores the open round. Stale tokens, out-of-range positions and
// sessions without an open round are ignored (ok=false).
func (s *Session) Answer(tok Token, pos int) (Result, bool) {
	if s.Stage != StageInRound || !s.open || tok != s.token {
		return Result{}, false
	}
	if pos < 1 || pos > len(s.Choices) {
		return Result{}, false
	}
	correct := pos == s.CorrectPos
	if correct {
		s.Score++
	}
	s.CurrentRound++
	s.open = false
	if s.CurrentRound >= s.TotalRounds {
		s.Stage = StageFinished
	}
	return Result{
		Round:     s.CurrentRound,
		Total:     s.TotalRounds,
		Score:     s.Score,
		Correct:   correct,
		EntityID:  s.Current,
		Label:     s.index.Label(s.Current),
		Chosen:    s.Choices[pos-1],
		Finished:  s.Stage == StageFinished,
		Remaining: s.TotalRounds - s.CurrentRound,
	}, true
}

// draw picks the next entity. Used is cleared once it covers every id; the
// previous entity is skipped when anything else is left.
func (s *Session) draw(r *Rand) (string, error) {
	ids := s.index.IDs()
	if len(ids) == 0 {
		return "", ErrNoEntities
	}

	unused := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.Used[id]; !ok {
			unused = append(unused, id)
		}
	}
	if len(unused) == 0 {
		clear(s.Used)
		unused = ids
		if len(ids) > 1 && s.Current != "" {
			unused = without(ids, s.Current)
		}
	}

	var pick string
	if s.CurrentRound < s.ColdStartRounds && s.ShowCounts != nil {
		pick = leastShown(unused, s.ShowCounts)
	} else {
		pick = unused[r.Intn(len(unused))]
	}
	s.Used[pick] = struct{}{}
	return pick, nil
}

// leastShown returns the first id (in the given order) with the lowest count.
func leastShown(ids []string, counts map[string]int) string {
	best := ids[0]
	for _, id := range ids[1:] {
		if counts[id] < counts[best] {
			best = id
		}
	}
	return best
}
