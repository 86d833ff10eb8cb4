package quiz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizbot/internal/dispatch"
	"quizbot/internal/eventbus"
	"quizbot/internal/stats"
	"quizbot/internal/storage"
	kit "quizbot/internal/transport"
	logx "quizbot/pkg/logx"
	"quizbot/pkg/tgui"
)

// ModeConfig configures one game mode.
type ModeConfig struct {
	Dir            string
	RoundOptions   []int
	NextRoundDelay time.Duration
	BatchDelay     time.Duration
}

type Config struct {
	Avatar          ModeConfig
	Art             ModeConfig
	CaptionsFile    string
	TileSize        int
	ColdStartRounds int
	LeastShownFirst bool
	SessionIdleTTL  time.Duration
	Seed            int64
}

func (c Config) Mode(m Mode) ModeConfig {
	if m == ModeArt {
		return c.Art
	}
	return c.Avatar
}

// Composer renders the avatar collage for the given image paths, in order.
type Composer interface {
	Compose(ctx context.Context, paths []string) ([]byte, error)
}

// OutcomeSink receives answered rounds. Submit must not block.
type OutcomeSink interface {
	Submit(o stats.Outcome) error
}

// ShowCounter returns historical per-entity show counts for a mode.
type ShowCounter interface {
	ShowCounts(ctx context.Context, mode string) (map[string]int, error)
}

// ResultSink persists finished games.
type ResultSink interface {
	AppendResult(ctx context.Context, r storage.GameResult) error
}

// Deps are the engine's collaborators. Sender, Content, Composer and
// Callbacks are required.
type Deps struct {
	Sender     *dispatch.Sender
	Content    Content
	Composer   Composer
	Callbacks  Callbacks
	Outcomes   OutcomeSink
	ShowCounts ShowCounter
	Results    ResultSink
	Sessions   *SessionStore
	Bus        eventbus.Bus
	Log        logx.Logger
	Rand       *Rand
	// After schedules fn after d and returns its cancel func.
	After func(d time.Duration, fn func()) (stop func() bool)
	Now   func() time.Time
}

// Engine drives quiz sessions. Every event runs under the user's session lock.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   Config
	d     Deps
	log   logx.Logger

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	timers   map[int64]roundTimer
	timerSeq uint64
	closed   bool
	writes   sync.WaitGroup
}

type roundTimer struct {
	seq  uint64
	stop func() bool
}

const (
	// noticeTimeout bounds a failure notice sent after the caller's ctx may be spent.
	noticeTimeout = 10 * time.Second
	// resultTimeout bounds the background write of a finished game.
	resultTimeout = 10 * time.Second
)

func NewEngine(cfg Config, d Deps) *Engine {
	if cfg.ColdStartRounds <= 0 {
		cfg.ColdStartRounds = 5
	}
	if d.Sessions == nil {
		d.Sessions = NewSessionStore()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Rand == nil {
		d.Rand = NewRand(cfg.Seed)
	}
	if d.After == nil {
		d.After = func(dur time.Duration, fn func()) func() bool { return time.AfterFunc(dur, fn).Stop }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	base, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:    cfg,
		d:      d,
		log:    d.Log.Component("quiz"),
		base:   base,
		cancel: cancel,
		timers: map[int64]roundTimer{},
	}
}

func (e *Engine) Sessions() *SessionStore { return e.d.Sessions }

// Apply swaps the game settings. Running sessions pick them up on their next step.
func (e *Engine) Apply(cfg Config) {
	if cfg.ColdStartRounds <= 0 {
		cfg.ColdStartRounds = 5
	}
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Close cancels pending round timers and waits for result writes in flight.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for user, t := range e.timers {
		t.stop()
		delete(e.timers, user)
	}
	e.mu.Unlock()
	e.writes.Wait()
	e.cancel()
}

// KnownEntities counts entities across all modes.
func (e *Engine) KnownEntities() int {
	n := 0
	for _, m := range []Mode{ModeAvatar, ModeArt} {
		if ix, err := e.d.Content.Index(m); err == nil {
			n += ix.Len()
		}
	}
	return n
}

func (e *Engine) ShowMenu(ctx context.Context, ev Menu) error {
	text, opt := menuMessage(e.d.Callbacks)
	if ev.Ref != nil {
		return e.settle(ev.User, e.d.Sender.EditText(ctx, *ev.Ref, text, opt))
	}
	_, err := e.d.Sender.SendText(ctx, ev.Chat, text, opt)
	return e.settle(ev.User, err)
}

// Start replaces any session of the user with a new one awaiting a round count.
func (e *Engine) Start(ctx context.Context, ev Start) error {
	if !ev.Mode.Valid() {
		return nil
	}
	unlock := e.d.Sessions.Lock(ev.User)
	defer unlock()

	e.stopTimer(ev.User)
	e.d.Sessions.Delete(ev.User)

	ix, err := e.d.Content.Index(ev.Mode)
	if err != nil {
		e.log.Warn("content index failed", logx.String("mode", string(ev.Mode)), logx.Err(err))
		_, serr := e.d.Sender.SendText(ctx, ev.Chat, "❌ Content is unavailable right now.", nil)
		return e.settle(ev.User, serr)
	}
	if ix.Len() == 0 {
		_, serr := e.d.Sender.SendText(ctx, ev.Chat, "❌ No pictures found for this game.", nil)
		return e.settle(ev.User, serr)
	}

	sess := NewSession(uuid.NewString(), ev.User, ix, e.d.Now())
	sess.Username = ev.Username
	sess.Chat = ev.Chat
	cfg := e.config()
	sess.ColdStartRounds = cfg.ColdStartRounds
	if cfg.LeastShownFirst && e.d.ShowCounts != nil {
		counts, err := e.d.ShowCounts.ShowCounts(ctx, string(ev.Mode))
		if err != nil {
			e.log.Debug("show counts unavailable", logx.Err(err))
		} else {
			sess.ShowCounts = counts
		}
	}

	options := RoundOptions(cfg.Mode(ev.Mode).RoundOptions, ix.Len())
	text, opt := roundCountMessage(e.d.Callbacks, ev.Mode, options)
	if ev.Ref != nil {
		err = e.d.Sender.EditText(ctx, *ev.Ref, text, opt)
	} else {
		_, err = e.d.Sender.SendText(ctx, ev.Chat, text, opt)
	}
	if err != nil {
		return e.settle(ev.User, err)
	}

	e.d.Sessions.Set(sess)
	e.publish(eventbus.TypeSessionStarted, sess, "")
	e.log.Info("session started",
		logx.String("session", sess.ID),
		logx.Int64("user", ev.User),
		logx.String("mode", string(ev.Mode)),
		logx.Int("entities", ix.Len()),
	)
	return nil
}

func (e *Engine) SelectRoundCount(ctx context.Context, ev SelectRoundCount) error {
	unlock := e.d.Sessions.Lock(ev.User)
	defer unlock()

	sess, ok := e.d.Sessions.Get(ev.User)
	if !ok || !sess.SelectRoundCount(ev.N) {
		return nil
	}
	e.d.Sessions.Touch(ev.User)

	if err := e.d.Sender.EditText(ctx, ev.Ref, "🎮 Rounds: "+itoa(sess.TotalRounds), nil); err != nil {
		if e.abandonOn(sess, err) {
			return nil
		}
		e.log.Debug("round count edit failed", logx.Err(err))
	}

	if sess.Mode.MultiAsset() {
		text, opt := batchSizeMessage(e.d.Callbacks)
		if _, err := e.d.Sender.SendText(ctx, sess.Chat, text, opt); err != nil && !e.abandonOn(sess, err) {
			e.halt(sess, "batch prompt not delivered", err)
		}
		return nil
	}
	return e.playRound(ctx, sess)
}

func (e *Engine) SelectBatchSize(ctx context.Context, ev SelectBatchSize) error {
	unlock := e.d.Sessions.Lock(ev.User)
	defer unlock()

	sess, ok := e.d.Sessions.Get(ev.User)
	if !ok || !sess.SelectBatchSize(ev.Size) {
		return nil
	}
	e.d.Sessions.Touch(ev.User)

	if err := e.d.Sender.EditText(ctx, ev.Ref, "Task: guess the artist by "+batchLabel(sess.BatchSize), nil); err != nil {
		if e.abandonOn(sess, err) {
			return nil
		}
		e.log.Debug("batch size edit failed", logx.Err(err))
	}
	e.scheduleRound(sess, e.config().Mode(sess.Mode).BatchDelay)
	return nil
}

// SubmitAnswer scores the open round. Stale or duplicate answers are ignored.
func (e *Engine) SubmitAnswer(ctx context.Context, ev SubmitAnswer) error {
	unlock := e.d.Sessions.Lock(ev.User)
	defer unlock()

	sess, ok := e.d.Sessions.Get(ev.User)
	if !ok {
		return nil
	}
	res, ok := sess.Answer(ev.Token, ev.Choice)
	if !ok {
		return nil
	}
	e.d.Sessions.Touch(ev.User)

	if e.d.Outcomes != nil {
		o := stats.Outcome{Mode: string(sess.Mode), EntityID: res.EntityID, Label: res.Label, Correct: res.Correct}
		if err := e.d.Outcomes.Submit(o); err != nil {
			e.log.Warn("outcome not queued", logx.String("session", sess.ID), logx.String("entity", res.EntityID), logx.Err(err))
		}
	}
	e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeRoundAnswered, Data: SessionEvent{
		SessionID: sess.ID, UserID: sess.UserID, Mode: sess.Mode,
		Round: res.Round, Total: res.Total, Score: res.Score,
		EntityID: res.EntityID, Correct: res.Correct,
	}})

	if err := e.d.Sender.EditMarkup(ctx, ev.Ref, tgui.Empty()); err != nil {
		if e.abandonOn(sess, err) {
			return nil
		}
		e.log.Debug("markup removal failed", logx.Err(err))
	}
	// Outcome and progress are informational; the game advances without them.
	if !e.tell(ctx, sess, "outcome", outcomeText(res)) || !e.tell(ctx, sess, "progress", progressText(res)) {
		return nil
	}

	if res.Finished {
		return e.finish(ctx, sess)
	}
	e.scheduleRound(sess, e.config().Mode(sess.Mode).NextRoundDelay)
	return nil
}

// tell sends a text the game does not depend on. It reports false only when
// the recipient is gone and the session was abandoned.
func (e *Engine) tell(ctx context.Context, sess *Session, what, text string) bool {
	_, err := e.d.Sender.SendText(ctx, sess.Chat, text, nil)
	if err == nil {
		return true
	}
	if e.abandonOn(sess, err) {
		return false
	}
	e.log.Warn(what+" not delivered", logx.String("session", sess.ID), logx.Err(err))
	return true
}

func (e *Engine) finish(ctx context.Context, sess *Session) error {
	e.d.Sessions.Delete(sess.UserID)
	e.saveResult(storage.GameResult{
		At:       e.d.Now(),
		UserID:   sess.UserID,
		Username: sess.Username,
		Mode:     string(sess.Mode),
		Score:    sess.Score,
		Rounds:   sess.TotalRounds,
	})
	e.publish(eventbus.TypeSessionFinished, sess, "")
	e.log.Info("session finished",
		logx.String("session", sess.ID),
		logx.Int64("user", sess.UserID),
		logx.Int("score", sess.Score),
		logx.Int("rounds", sess.TotalRounds),
	)

	text, opt := summaryMessage(e.d.Callbacks, sess)
	_, err := e.d.Sender.SendText(ctx, sess.Chat, text, opt)
	if errors.Is(err, dispatch.ErrRecipientUnreachable) {
		return nil
	}
	return err
}

// saveResult writes a finished game off the answer path.
func (e *Engine) saveResult(r storage.GameResult) {
	if e.d.Results == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Warn("game result dropped on shutdown", logx.Int64("user", r.UserID))
		return
	}
	e.writes.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.writes.Done()
		ctx, cancel := context.WithTimeout(e.base, resultTimeout)
		defer cancel()
		if err := e.d.Results.AppendResult(ctx, r); err != nil {
			e.log.Warn("game result not saved", logx.Int64("user", r.UserID), logx.Err(err))
		}
	}()
}

func (e *Engine) scheduleRound(sess *Session, delay time.Duration) {
	user, id := sess.UserID, sess.ID
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[user]; ok {
		t.stop()
	}
	e.timerSeq++
	seq := e.timerSeq
	stop := e.d.After(delay, func() {
		e.mu.Lock()
		if t, ok := e.timers[user]; ok && t.seq == seq {
			delete(e.timers, user)
		}
		e.mu.Unlock()
		if err := e.nextRound(e.base, user, id); err != nil {
			e.log.Warn("next round failed", logx.Int64("user", user), logx.Err(err))
		}
	})
	e.timers[user] = roundTimer{seq: seq, stop: stop}
}

func (e *Engine) stopTimer(user int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[user]; ok {
		t.stop()
		delete(e.timers, user)
	}
}

func (e *Engine) nextRound(ctx context.Context, user int64, sessionID string) error {
	if ctx.Err() != nil {
		return nil
	}
	unlock := e.d.Sessions.Lock(user)
	defer unlock()

	sess, ok := e.d.Sessions.Get(user)
	if !ok || sess.ID != sessionID {
		return nil
	}
	return e.playRound(ctx, sess)
}

// playRound draws and delivers the next round. The caller holds the user lock.
func (e *Engine) playRound(ctx context.Context, sess *Session) error {
	rnd, err := sess.NextRound(e.d.Rand)
	if err != nil {
		if errors.Is(err, ErrNotInRound) {
			return nil
		}
		e.d.Sessions.Delete(sess.UserID)
		e.log.Warn("round not drawn", logx.String("session", sess.ID), logx.Err(err))
		_, serr := e.d.Sender.SendText(ctx, sess.Chat, "❌ No media for this round. The game is over.", nil)
		return e.settle(sess.UserID, serr)
	}
	e.d.Sessions.Set(sess)

	switch sess.Mode {
	case ModeAvatar:
		err = e.sendAvatarRound(ctx, sess, rnd)
	default:
		err = e.sendArtRound(ctx, sess, rnd)
	}
	if err != nil && !e.abandonOn(sess, err) {
		e.halt(sess, "round not delivered", err)
	}
	return nil
}

// halt ends a session whose next step could not be shown to the user and
// tells them once. The caller holds the user lock.
func (e *Engine) halt(sess *Session, reason string, cause error) {
	e.d.Sessions.Delete(sess.UserID)
	e.stopTimer(sess.UserID)
	e.publish(eventbus.TypeSessionAbandoned, sess, reason)
	e.log.Warn("session halted",
		logx.String("session", sess.ID),
		logx.Int64("user", sess.UserID),
		logx.String("reason", reason),
		logx.Err(cause),
	)

	ctx, cancel := context.WithTimeout(e.base, noticeTimeout)
	defer cancel()
	if _, err := e.d.Sender.SendText(ctx, sess.Chat, "❌ Something went wrong showing the next step. The game is over, use /start to play again.", nil); err != nil {
		e.log.Debug("halt notice not delivered", logx.Err(err))
	}
}

func (e *Engine) sendAvatarRound(ctx context.Context, sess *Session, rnd Round) error {
	ix := sess.Index()
	paths := make([]string, len(rnd.Choices))
	for i, id := range rnd.Choices {
		if ent, ok := ix.Entity(id); ok && len(ent.Media) > 0 {
			paths[i] = ent.Media[0].Path
		}
	}
	body, err := e.d.Composer.Compose(ctx, paths)
	if err != nil {
		return err
	}
	opt := &kit.SendOptions{ParseMode: "HTML", Keyboard: avatarKeyboard(e.d.Callbacks, rnd)}
	_, err = e.d.Sender.SendPhoto(ctx, sess.Chat, body, avatarCaption(rnd), opt)
	return err
}

func (e *Engine) sendArtRound(ctx context.Context, sess *Session, rnd Round) error {
	if err := e.sendBatch(ctx, sess.Chat, rnd.Batch); err != nil {
		return err
	}
	text, opt := artPrompt(e.d.Callbacks, sess.Index(), rnd)
	_, err := e.d.Sender.SendText(ctx, sess.Chat, text, opt)
	return err
}

// settle maps delivery errors for a user without a live session.
func (e *Engine) settle(user int64, err error) error {
	if errors.Is(err, dispatch.ErrRecipientUnreachable) {
		e.d.Sessions.Delete(user)
		e.stopTimer(user)
		return nil
	}
	return err
}

func (e *Engine) abandonOn(sess *Session, err error) bool {
	if !errors.Is(err, dispatch.ErrRecipientUnreachable) {
		return false
	}
	e.d.Sessions.Delete(sess.UserID)
	e.stopTimer(sess.UserID)
	e.publish(eventbus.TypeSessionAbandoned, sess, "recipient unreachable")
	e.log.Info("session abandoned", logx.String("session", sess.ID), logx.Int64("user", sess.UserID))
	return true
}

func (e *Engine) publish(typ string, sess *Session, reason string) {
	e.d.Bus.Publish(eventbus.Event{Type: typ, Data: SessionEvent{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Mode:      sess.Mode,
		Round:     sess.CurrentRound,
		Total:     sess.TotalRounds,
		Score:     sess.Score,
		Reason:    reason,
	}})
}

// EvictIdle drops sessions idle longer than the configured TTL.
func (e *Engine) EvictIdle() int {
	users := e.d.Sessions.EvictIdle(e.config().SessionIdleTTL)
	for _, u := range users {
		e.stopTimer(u)
	}
	if len(users) > 0 {
		e.log.Info("idle sessions evicted", logx.Int("count", len(users)))
	}
	return len(users)
}
