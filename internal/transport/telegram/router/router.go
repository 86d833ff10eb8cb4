// Package router turns inbound Telegram updates into handler calls.
//
// Updates are sharded by user id onto sequential workers, so events of one
// user are handled in arrival order while different users run in parallel.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizbot/internal/runtime/supervisor"
	kit "quizbot/internal/transport"
	logx "quizbot/pkg/logx"
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Hidden      bool // not listed in the Telegram menu
	Timeout     time.Duration
	Handle      HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

type CallbackRoute struct {
	Scope   string
	Action  string
	Timeout time.Duration
	// Silent callbacks are answered by the handler itself.
	Silent bool
	Handle CallbackHandlerFunc
}

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	Username string
	Command  string
	Args     []string
	Payload  string

	// Message is the message that carried the pressed button (callbacks only).
	Message kit.MessageRef
	ReqID   string
	Logger  logx.Logger

	notes []logx.Field
}

// Annotate attaches fields to the request's completion log line.
func (r *Request) Annotate(fields ...logx.Field) { r.notes = append(r.notes, fields...) }

func (r *Request) annotations() []logx.Field {
	if r == nil {
		return nil
	}
	return r.notes
}

func (r *Request) logger(fallback logx.Logger) logx.Logger {
	if r == nil || r.Logger.IsZero() {
		return fallback
	}
	return r.Logger
}

// Outbox is the router's way back to the user. dispatch.Sender implements it.
type Outbox interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

type Config struct {
	Workers   int
	QueueSize int
	// DefaultTimeout applies to routes without their own timeout.
	DefaultTimeout time.Duration
	// SlowThreshold promotes successful request logs to INFO. Default 750ms.
	SlowThreshold time.Duration
}

// replyTimeout bounds the best-effort replies sent from the intake loop.
const replyTimeout = 5 * time.Second

type Router struct {
	cfg Config
	log logx.Logger
	out Outbox

	mu        sync.RWMutex
	commands  map[string]Command
	callbacks map[string]map[string]CallbackRoute

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor
	shards  []chan func()
}

func New(cfg Config, log logx.Logger, out Outbox) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = max(2, runtime.NumCPU())
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 750 * time.Millisecond
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cfg:       cfg,
		log:       log.Component("telegram.router"),
		out:       out,
		commands:  map[string]Command{},
		callbacks: map[string]map[string]CallbackRoute{},
	}
}

// Supervisor returns the worker supervisor (nil if not running).
func (r *Router) Supervisor() *supervisor.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.running {
		return nil
	}
	return r.sup
}

// SetRegistry replaces all routes. Safe to call while running.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	commands := map[string]Command{}
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		commands[name] = c
		for _, a := range c.Aliases {
			if a = sanitizeCommand(a); a != "" {
				if _, exists := commands[a]; !exists {
					commands[a] = c
				}
			}
		}
	}

	callbacks := map[string]map[string]CallbackRoute{}
	for _, cb := range cbs {
		s, a := strings.TrimSpace(cb.Scope), strings.TrimSpace(cb.Action)
		if s == "" || a == "" || cb.Handle == nil {
			continue
		}
		if callbacks[s] == nil {
			callbacks[s] = map[string]CallbackRoute{}
		}
		callbacks[s][a] = cb
	}

	r.mu.Lock()
	r.commands = commands
	r.callbacks = callbacks
	r.mu.Unlock()
}

// MenuCommands returns the visible commands for the Telegram menu.
func (r *Router) MenuCommands() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	var list []Command
	for _, c := range r.commands {
		if c.Hidden || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		list = append(list, c)
	}
	return buildMenu(list)
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(r.log),
		supervisor.WithCancelOnError(false),
	)
	shards := make([]chan func(), r.cfg.Workers)
	for i := range shards {
		shards[i] = make(chan func(), r.cfg.QueueSize)
	}
	r.runMu.Lock()
	r.sup, r.shards, r.running = sup, shards, true
	r.runMu.Unlock()

	r.log.Info("dispatcher started", logx.Int("workers", len(shards)), logx.Int("queue_cap", r.cfg.QueueSize))

	for i, q := range shards {
		idx, jobs := i, q
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					// Middleware recovers handler panics; keep the worker alive regardless.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in router job", logx.Int("worker", idx), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		r.runMu.Lock()
		r.running = false
		for _, q := range shards {
			close(q)
		}
		r.runMu.Unlock()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

// enqueue places job on the user's shard without blocking.
func (r *Router) enqueue(user int64, job func()) bool {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.running || len(r.shards) == 0 {
		return false
	}
	q := r.shards[shardOf(user, len(r.shards))]
	select {
	case q <- job:
		return true
	default:
		return false
	}
}

func shardOf(user int64, n int) int {
	return int(uint64(user) % uint64(n))
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	r.mu.RLock()
	cmd, found := r.commands[name]
	r.mu.RUnlock()
	if !found {
		r.log.Debug("unknown command", logx.String("cmd", name), logx.Int64("from_id", msg.FromID))
		return
	}

	req := &Request{
		Update:   up,
		Chat:     kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:   msg.FromID,
		Username: msg.FromUsername,
		Command:  cmd.Name,
		Args:     args,
	}
	r.attach(req)
	final := r.chain(cmd.Handle, cmd.Timeout)
	if !r.enqueue(msg.FromID, func() { _ = final(ctx, req) }) {
		r.replyAsync("busy", func(c context.Context) error {
			_, err := r.out.SendText(c, req.Chat, "Busy, try again in a moment.", nil)
			return err
		})
	}
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	scope, action, payload := parts[0], parts[1], ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	r.mu.RLock()
	route, ok := r.callbacks[scope][action]
	r.mu.RUnlock()
	if !ok {
		r.replyAsync("answer", func(c context.Context) error { return r.out.AnswerCallback(c, cb.ID, "") })
		return
	}

	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		Command: "cb:" + scope + ":" + action,
		Payload: payload,
		Message: kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID},
	}
	r.attach(req)
	h := func(ctx context.Context, req *Request) error { return route.Handle(ctx, req, payload) }
	final := r.chain(h, route.Timeout)

	if !r.enqueue(cb.FromID, func() {
		_ = final(ctx, req)
		if !route.Silent {
			// best-effort to stop the "loading" spinner
			_ = r.out.AnswerCallback(ctx, cb.ID, "")
		}
	}) {
		r.replyAsync("busy", func(c context.Context) error { return r.out.AnswerCallback(c, cb.ID, "Busy") })
	}
}

// replyAsync sends a best-effort reply off the intake loop, so a throttled
// recipient never delays routing for other users.
func (r *Router) replyAsync(kind string, send func(ctx context.Context) error) {
	r.runMu.Lock()
	sup, running := r.sup, r.running
	r.runMu.Unlock()
	if !running || sup == nil {
		return
	}
	sup.Go0("router.reply."+kind, func(c context.Context) {
		ctx, cancel := context.WithTimeout(c, replyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			r.log.Debug("reply failed", logx.String("kind", kind), logx.Err(err))
		}
	})
}

func (r *Router) attach(req *Request) {
	req.ReqID = uuid.NewString()
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command),
	)
}

func (r *Router) chain(h HandlerFunc, timeout time.Duration) HandlerFunc {
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	return Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log, r.cfg.SlowThreshold),
		MWTimeout(timeout),
	)
}

// parseCommand extracts "/name@bot args..." from text.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	if word == "" {
		return "", nil, false
	}
	return word, fields[1:], true
}
