package quiz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"quizbot/internal/dispatch"
	"quizbot/internal/eventbus"
	"quizbot/internal/stats"
	"quizbot/internal/storage"
	kit "quizbot/internal/transport"
	logx "quizbot/pkg/logx"
)

type sent struct {
	op   string
	text string
	kb   *kit.Keyboard
	m    []kit.Media
}

type fakeAdapter struct {
	mu    sync.Mutex
	calls []sent
	next  int
	fail  map[string]error
	// failOn lists 1-based call numbers per op that fail with a bad request.
	failOn map[string][]int
	seen   map[string]int
}

var errBadRequest = errors.New("bad request")

func (f *fakeAdapter) record(op, text string, kb *kit.Keyboard, m ...kit.Media) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[op]++
	if err := f.fail[op]; err != nil {
		return kit.MessageRef{}, err
	}
	for _, n := range f.failOn[op] {
		if n == f.seen[op] {
			return kit.MessageRef{}, errBadRequest
		}
	}
	f.next++
	f.calls = append(f.calls, sent{op: op, text: text, kb: kb, m: m})
	return kit.MessageRef{ChatID: 1, MessageID: f.next}, nil
}

func keyboard(opt *kit.SendOptions) *kit.Keyboard {
	if opt == nil {
		return nil
	}
	return opt.Keyboard
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return f.record("text", text, keyboard(opt))
}

func (f *fakeAdapter) SendMedia(_ context.Context, _ kit.ChatTarget, m kit.Media, opt *kit.SendOptions) (kit.MessageRef, error) {
	return f.record(string(m.Kind), m.Caption, keyboard(opt), m)
}

func (f *fakeAdapter) SendMediaGroup(_ context.Context, _ kit.ChatTarget, items []kit.Media) ([]kit.MessageRef, error) {
	ref, err := f.record("group", "", nil, items...)
	if err != nil {
		return nil, err
	}
	return []kit.MessageRef{ref}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, _ kit.MessageRef, text string, opt *kit.SendOptions) error {
	_, err := f.record("edit_text", text, keyboard(opt))
	return err
}

func (f *fakeAdapter) EditMarkup(_ context.Context, _ kit.MessageRef, kb *kit.Keyboard) error {
	_, err := f.record("edit_markup", "", kb)
	return err
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

// failNext makes the next n calls of op fail.
func (f *fakeAdapter) failNext(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i <= n; i++ {
		f.failOn[op] = append(f.failOn[op], f.seen[op]+i)
	}
}

func (f *fakeAdapter) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeComposer struct{ paths [][]string }

func (c *fakeComposer) Compose(_ context.Context, paths []string) ([]byte, error) {
	c.paths = append(c.paths, paths)
	return []byte("jpeg"), nil
}

type testCallbacks struct{}

func (testCallbacks) Mode(m Mode) string    { return "quiz:mode:" + string(m) }
func (testCallbacks) Menu() string          { return "quiz:menu" }
func (testCallbacks) Rounds(n int) string   { return "quiz:rounds:" + strconv.Itoa(n) }
func (testCallbacks) Batch(size int) string { return "quiz:batch:" + strconv.Itoa(size) }
func (testCallbacks) Noop() string          { return "quiz:noop" }
func (testCallbacks) Answer(tok Token, pos int) string {
	return "quiz:ans:" + tok.String() + "." + strconv.Itoa(pos)
}

type fakeOutcomes struct {
	mu  sync.Mutex
	got []stats.Outcome
}

func (f *fakeOutcomes) Submit(o stats.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, o)
	return nil
}

type timers struct{ fns []func() }

func (t *timers) after(_ time.Duration, fn func()) func() bool {
	t.fns = append(t.fns, fn)
	return func() bool { return false }
}

func (t *timers) fire() {
	fns := t.fns
	t.fns = nil
	for _, fn := range fns {
		fn()
	}
}

type harness struct {
	eng      *Engine
	ad       *fakeAdapter
	comp     *fakeComposer
	outcomes *fakeOutcomes
	results  storage.Store
	timers   *timers
	bus      eventbus.Bus
}

func newHarness(t *testing.T, content Content, opts ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		ad:       &fakeAdapter{fail: map[string]error{}, failOn: map[string][]int{}, seen: map[string]int{}},
		comp:     &fakeComposer{},
		outcomes: &fakeOutcomes{},
		results:  storage.NewMemory(),
		timers:   &timers{},
		bus:      eventbus.New(),
	}
	sender := dispatch.NewSender(h.ad, dispatch.New(dispatch.Config{}, logx.Nop()))
	d := Deps{
		Sender:    sender,
		Content:   content,
		Composer:  h.comp,
		Callbacks: testCallbacks{},
		Outcomes:  h.outcomes,
		Results:   h.results,
		Bus:       h.bus,
		Rand:      NewRand(1),
		After:     h.timers.after,
	}
	for _, o := range opts {
		o(&d)
	}
	h.eng = NewEngine(Config{
		Avatar: ModeConfig{RoundOptions: []int{5, 20, 50}},
		Art:    ModeConfig{RoundOptions: []int{5, 20, 40}},
	}, d)
	t.Cleanup(h.eng.Close)
	return h
}

type staticContent map[Mode]*Index

func (c staticContent) Index(m Mode) (*Index, error) {
	if ix, ok := c[m]; ok {
		return ix, nil
	}
	return nil, errors.New("no content")
}

func TestAliceScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "alice#3.jpg", "alice#1.jpg", "alice#2.jpg")
	h := newHarness(t, DirContent{Dirs: map[Mode]string{ModeArt: dir}})
	ctx := context.Background()
	chat := kit.ChatTarget{ChatID: 1}

	if err := h.eng.Start(ctx, Start{User: 7, Chat: chat, Mode: ModeArt}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	kb := h.ad.last().kb
	if kb == nil || len(kb.Rows) != 1 || kb.Rows[0][0].Data != "quiz:rounds:1" {
		t.Fatalf("round keyboard = %+v, want single option 1", kb)
	}

	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 7, N: 1}); err != nil {
		t.Fatalf("SelectRoundCount: %v", err)
	}
	if err := h.eng.SelectBatchSize(ctx, SelectBatchSize{User: 7, Size: 1}); err != nil {
		t.Fatalf("SelectBatchSize: %v", err)
	}
	before := len(h.ad.ops())
	h.timers.fire()

	ops := h.ad.ops()[before:]
	if fmt.Sprint(ops) != "[photo text]" {
		t.Fatalf("round ops = %v, want [photo text]", ops)
	}
	h.ad.mu.Lock()
	media := h.ad.calls[before].m
	prompt := h.ad.calls[before+1]
	h.ad.mu.Unlock()
	if len(media) != 1 || filepath.Base(media[0].Path) != "alice#1.jpg" {
		t.Fatalf("media = %+v, want alice#1.jpg", media)
	}
	if len(prompt.kb.Rows) != 1 || prompt.kb.Rows[0][0].Data != "quiz:ans:1.1.1" {
		t.Fatalf("answer keyboard = %+v", prompt.kb)
	}

	if err := h.eng.SubmitAnswer(ctx, SubmitAnswer{User: 7, Token: Token{Round: 1, Seq: 1}, Choice: 1}); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, ok := h.eng.Sessions().Get(7); ok {
		t.Fatalf("session still present after last round")
	}
	if !strings.Contains(h.ad.last().text, "1 of 1") {
		t.Fatalf("summary = %q, want score out of 1", h.ad.last().text)
	}
	if len(h.outcomes.got) != 1 || !h.outcomes.got[0].Correct || h.outcomes.got[0].EntityID != "alice" {
		t.Fatalf("outcomes = %+v", h.outcomes.got)
	}

	n := len(h.ad.ops())
	if err := h.eng.SubmitAnswer(ctx, SubmitAnswer{User: 7, Token: Token{Round: 1, Seq: 1}, Choice: 1}); err != nil {
		t.Fatalf("late SubmitAnswer: %v", err)
	}
	if len(h.ad.ops()) != n {
		t.Fatalf("late answer sent messages")
	}
}

func TestAvatarRoundUsesCollage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeAvatar: avatarIndex(6)})
	ctx := context.Background()

	_ = h.eng.Start(ctx, Start{User: 1, Chat: kit.ChatTarget{ChatID: 1}, Mode: ModeAvatar})
	kb := h.ad.last().kb
	if got := kb.Rows[0][0].Data; got != "quiz:rounds:5" {
		t.Fatalf("first option = %q, want quiz:rounds:5", got)
	}
	if got := kb.Rows[0][1].Data; got != "quiz:rounds:6" {
		t.Fatalf("all option = %q, want quiz:rounds:6", got)
	}

	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 1, N: 2}); err != nil {
		t.Fatalf("SelectRoundCount: %v", err)
	}
	last := h.ad.last()
	if last.op != "photo" || len(h.comp.paths) != 1 || len(h.comp.paths[0]) != 4 {
		t.Fatalf("last op = %q, composed %v", last.op, h.comp.paths)
	}
	if len(last.kb.Rows[0]) != 4 {
		t.Fatalf("answer buttons = %d, want 4", len(last.kb.Rows[0]))
	}

	sess, _ := h.eng.Sessions().Get(1)
	tok, pos := sess.Token(), sess.CorrectPos
	if err := h.eng.SubmitAnswer(ctx, SubmitAnswer{User: 1, Token: tok, Choice: pos}); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if len(h.timers.fns) != 1 {
		t.Fatalf("scheduled rounds = %d, want 1", len(h.timers.fns))
	}
	if sess.Score != 1 || sess.CurrentRound != 1 {
		t.Fatalf("score %d round %d, want 1 1", sess.Score, sess.CurrentRound)
	}
	h.timers.fire()
	if h.ad.last().op != "photo" || len(h.comp.paths) != 2 {
		t.Fatalf("second round not delivered: %v", h.ad.ops())
	}
}

func TestUnreachableAbandonsSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeAvatar: avatarIndex(4)})
	ch, unsub := h.bus.Subscribe(16)
	defer unsub()
	ctx := context.Background()

	_ = h.eng.Start(ctx, Start{User: 3, Chat: kit.ChatTarget{ChatID: 3}, Mode: ModeAvatar})
	h.ad.mu.Lock()
	h.ad.fail["photo"] = kit.Unreachable(errors.New("bot was blocked by the user"))
	h.ad.mu.Unlock()
	before := len(h.ad.ops())

	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 3, N: 4}); err != nil {
		t.Fatalf("SelectRoundCount = %v, want nil", err)
	}
	if _, ok := h.eng.Sessions().Get(3); ok {
		t.Fatalf("session kept after recipient loss")
	}
	if got := h.ad.ops()[before:]; fmt.Sprint(got) != "[edit_text]" {
		t.Fatalf("ops after loss = %v, want only the prompt edit", got)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == eventbus.TypeSessionAbandoned {
				return
			}
		case <-deadline:
			t.Fatalf("no abandon event")
		}
	}
}

func TestStartWithoutContent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeArt: testIndex(ModeArt, nil)})
	if err := h.eng.Start(context.Background(), Start{User: 5, Mode: ModeArt}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := h.eng.Sessions().Get(5); ok {
		t.Fatalf("session created without entities")
	}
	if got := h.ad.ops(); fmt.Sprint(got) != "[text]" {
		t.Fatalf("ops = %v, want one explanatory message", got)
	}
}

func TestArtMediaFallback(t *testing.T) {
	t.Parallel()

	ix := testIndex(ModeArt, map[string][]int{"a": {1, 2, 3}, "b": {1}})
	ent, _ := ix.Entity("a")
	ent.Media[1].Kind = MediaVideo

	h := newHarness(t, staticContent{ModeArt: ix})
	h.ad.fail["group"] = errors.New("mixed media rejected")

	err := h.eng.sendBatch(context.Background(), kit.ChatTarget{ChatID: 1}, ent.Media)
	if err != nil {
		t.Fatalf("sendBatch: %v", err)
	}
	if got := fmt.Sprint(h.ad.ops()); got != "[video photo photo]" {
		t.Fatalf("ops = %s, want [video photo photo]", got)
	}
}

type failingOutcomes struct{ calls int }

func (f *failingOutcomes) Submit(stats.Outcome) error {
	f.calls++
	return errors.New("outcome queue full")
}

// gatedResults holds every write until release is closed.
type gatedResults struct {
	release chan struct{}
	mu      sync.Mutex
	got     []storage.GameResult
}

func (g *gatedResults) AppendResult(ctx context.Context, r storage.GameResult) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, r)
	return nil
}

func (g *gatedResults) saved() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.got)
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) SessionEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				ev, _ := e.Data.(SessionEvent)
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
			return SessionEvent{}
		}
	}
}

// playArtRound starts a one-round art game for user and delivers its round.
func playArtRound(t *testing.T, h *harness, user int64) *Session {
	t.Helper()
	ctx := context.Background()
	if err := h.eng.Start(ctx, Start{User: user, Chat: kit.ChatTarget{ChatID: user}, Mode: ModeArt}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: user, N: 1}); err != nil {
		t.Fatalf("SelectRoundCount: %v", err)
	}
	if err := h.eng.SelectBatchSize(ctx, SelectBatchSize{User: user, Size: 1}); err != nil {
		t.Fatalf("SelectBatchSize: %v", err)
	}
	h.timers.fire()
	sess, ok := h.eng.Sessions().Get(user)
	if !ok {
		t.Fatalf("session missing after round delivery")
	}
	return sess
}

func TestUndeliveredOutcomeStillFinishes(t *testing.T) {
	t.Parallel()

	results := &gatedResults{release: make(chan struct{})}
	close(results.release)
	h := newHarness(t, staticContent{ModeArt: testIndex(ModeArt, map[string][]int{"alice": {1}})},
		func(d *Deps) { d.Results = results })
	sess := playArtRound(t, h, 7)

	h.ad.failNext("text", 2)
	err := h.eng.SubmitAnswer(context.Background(), SubmitAnswer{User: 7, Token: sess.Token(), Choice: sess.CorrectPos})
	if err != nil {
		t.Fatalf("SubmitAnswer = %v, want nil", err)
	}
	if _, ok := h.eng.Sessions().Get(7); ok {
		t.Fatalf("session still present after last round")
	}
	if !strings.Contains(h.ad.last().text, "1 of 1") {
		t.Fatalf("last message = %q, want summary", h.ad.last().text)
	}
	h.eng.Close()
	if got := results.saved(); got != 1 {
		t.Fatalf("saved results = %d, want 1", got)
	}
}

func TestRateLimitedProgressKeepsGame(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeAvatar: avatarIndex(6)})
	ctx := context.Background()
	_ = h.eng.Start(ctx, Start{User: 1, Chat: kit.ChatTarget{ChatID: 1}, Mode: ModeAvatar})
	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 1, N: 2}); err != nil {
		t.Fatalf("SelectRoundCount: %v", err)
	}
	sess, _ := h.eng.Sessions().Get(1)

	h.ad.mu.Lock()
	h.ad.fail["text"] = kit.RateLimited(0, errors.New("too many requests"))
	h.ad.mu.Unlock()
	if err := h.eng.SubmitAnswer(ctx, SubmitAnswer{User: 1, Token: sess.Token(), Choice: sess.CorrectPos}); err != nil {
		t.Fatalf("SubmitAnswer = %v, want nil", err)
	}
	if _, ok := h.eng.Sessions().Get(1); !ok {
		t.Fatalf("session dropped after rate limits")
	}
	if len(h.timers.fns) != 1 {
		t.Fatalf("scheduled rounds = %d, want 1", len(h.timers.fns))
	}

	h.ad.mu.Lock()
	delete(h.ad.fail, "text")
	h.ad.mu.Unlock()
	h.timers.fire()
	if h.ad.last().op != "photo" || sess.CurrentRound != 2 {
		t.Fatalf("second round not delivered: ops %v round %d", h.ad.ops(), sess.CurrentRound)
	}
}

func TestRoundDeliveryFailureHalts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeAvatar: avatarIndex(4)})
	ch, unsub := h.bus.Subscribe(16)
	defer unsub()
	ctx := context.Background()

	_ = h.eng.Start(ctx, Start{User: 3, Chat: kit.ChatTarget{ChatID: 3}, Mode: ModeAvatar})
	h.ad.mu.Lock()
	h.ad.fail["photo"] = errors.New("bad request: wrong file identifier")
	h.ad.mu.Unlock()

	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 3, N: 4}); err != nil {
		t.Fatalf("SelectRoundCount = %v, want nil", err)
	}
	if _, ok := h.eng.Sessions().Get(3); ok {
		t.Fatalf("session kept with no answer buttons shown")
	}
	if len(h.timers.fns) != 0 {
		t.Fatalf("timers = %d, want 0", len(h.timers.fns))
	}
	if last := h.ad.last(); last.op != "text" || !strings.Contains(last.text, "game is over") {
		t.Fatalf("last message = %s %q, want halt notice", last.op, last.text)
	}
	if ev := waitEvent(t, ch, eventbus.TypeSessionAbandoned); ev.Reason != "round not delivered" {
		t.Fatalf("abandon reason = %q, want round not delivered", ev.Reason)
	}
}

func TestBatchPromptFailureHalts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeArt: testIndex(ModeArt, map[string][]int{"alice": {1, 2}})})
	ctx := context.Background()
	_ = h.eng.Start(ctx, Start{User: 4, Chat: kit.ChatTarget{ChatID: 4}, Mode: ModeArt})

	h.ad.failNext("text", 1)
	if err := h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 4, N: 1}); err != nil {
		t.Fatalf("SelectRoundCount = %v, want nil", err)
	}
	if _, ok := h.eng.Sessions().Get(4); ok {
		t.Fatalf("session kept without a batch prompt")
	}
	if !strings.Contains(h.ad.last().text, "game is over") {
		t.Fatalf("last message = %q, want halt notice", h.ad.last().text)
	}
}

func TestFailingOutcomeSinkStillAdvances(t *testing.T) {
	t.Parallel()

	sink := &failingOutcomes{}
	h := newHarness(t, staticContent{ModeAvatar: avatarIndex(6)}, func(d *Deps) { d.Outcomes = sink })
	ctx := context.Background()
	_ = h.eng.Start(ctx, Start{User: 2, Chat: kit.ChatTarget{ChatID: 2}, Mode: ModeAvatar})
	_ = h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 2, N: 2})
	sess, _ := h.eng.Sessions().Get(2)

	if err := h.eng.SubmitAnswer(ctx, SubmitAnswer{User: 2, Token: sess.Token(), Choice: sess.CorrectPos}); err != nil {
		t.Fatalf("SubmitAnswer = %v, want nil", err)
	}
	if sink.calls != 1 {
		t.Fatalf("Submit calls = %d, want 1", sink.calls)
	}
	if sess.Score != 1 || len(h.timers.fns) != 1 {
		t.Fatalf("score %d timers %d, want 1 1", sess.Score, len(h.timers.fns))
	}
}

func TestSlowResultWriteDoesNotDelaySummary(t *testing.T) {
	t.Parallel()

	results := &gatedResults{release: make(chan struct{})}
	h := newHarness(t, staticContent{ModeArt: testIndex(ModeArt, map[string][]int{"alice": {1}})},
		func(d *Deps) { d.Results = results })
	sess := playArtRound(t, h, 9)

	done := make(chan error, 1)
	go func() {
		done <- h.eng.SubmitAnswer(context.Background(), SubmitAnswer{User: 9, Token: sess.Token(), Choice: sess.CorrectPos})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SubmitAnswer = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("SubmitAnswer waited on the result write")
	}
	if !strings.Contains(h.ad.last().text, "1 of 1") {
		t.Fatalf("last message = %q, want summary", h.ad.last().text)
	}
	if got := results.saved(); got != 0 {
		t.Fatalf("saved results = %d before release, want 0", got)
	}

	close(results.release)
	h.eng.Close()
	if got := results.saved(); got != 1 {
		t.Fatalf("saved results = %d after Close, want 1", got)
	}
}

func TestStaleTimerKeepsNewerEntry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, staticContent{ModeAvatar: avatarIndex(4)})
	ctx := context.Background()
	_ = h.eng.Start(ctx, Start{User: 5, Chat: kit.ChatTarget{ChatID: 5}, Mode: ModeAvatar})
	_ = h.eng.SelectRoundCount(ctx, SelectRoundCount{User: 5, N: 4})
	sess, _ := h.eng.Sessions().Get(5)

	h.eng.scheduleRound(sess, time.Second)
	h.eng.scheduleRound(sess, time.Second)
	if len(h.timers.fns) != 2 {
		t.Fatalf("scheduled = %d, want 2", len(h.timers.fns))
	}
	// The first timer lost its stop race and fires anyway.
	h.timers.fns[0]()

	h.eng.mu.Lock()
	cur, ok := h.eng.timers[5]
	want := h.eng.timerSeq
	h.eng.mu.Unlock()
	if !ok || cur.seq != want {
		t.Fatalf("timer entry = %+v (present %v), want seq %d", cur, ok, want)
	}
}

func TestGroupFallbackSkipsDeliveredChunks(t *testing.T) {
	t.Parallel()

	seqs := make([]int, 12)
	for i := range seqs {
		seqs[i] = i + 1
	}
	tests := []struct {
		name   string
		failOn []int
		want   string
		last   int
	}{
		{"regroup remainder", []int{2}, "[group group]", 2},
		{"remainder one by one", []int{2, 3}, "[group photo photo]", 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ix := testIndex(ModeArt, map[string][]int{"a": seqs})
			ent, _ := ix.Entity("a")
			h := newHarness(t, staticContent{ModeArt: ix})
			h.ad.failOn["group"] = tt.failOn

			if err := h.eng.sendBatch(context.Background(), kit.ChatTarget{ChatID: 1}, ent.Media); err != nil {
				t.Fatalf("sendBatch: %v", err)
			}
			if got := fmt.Sprint(h.ad.ops()); got != tt.want {
				t.Fatalf("ops = %s, want %s", got, tt.want)
			}
			h.ad.mu.Lock()
			first := len(h.ad.calls[0].m)
			rest := h.ad.calls[1].m
			h.ad.mu.Unlock()
			if first != 10 || len(rest) != tt.last || filepath.Base(rest[0].Path) != "a#11.jpg" {
				t.Fatalf("chunks = %d then %d starting %s, want 10 then %d starting a#11.jpg", first, len(rest), rest[0].Path, tt.last)
			}
		})
	}
}
