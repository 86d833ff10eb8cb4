package stats

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"quizbot/internal/eventbus"
	rtsup "quizbot/internal/runtime/supervisor"
	logx "quizbot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("stats queue full")
	ErrStopped   = errors.New("stats recorder stopped")
)

// RecorderConfig controls the async stats pipeline.
type RecorderConfig struct {
	Workers       int
	QueueSize     int
	WriteTimeout  time.Duration
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Event is published on the bus for every recorded or failed outcome.
type Event struct {
	Mode     string `json:"mode"`
	EntityID string `json:"entity_id"`
	Correct  bool   `json:"correct"`
	Total    int    `json:"total,omitempty"`
	Percent  int    `json:"percent,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Recorder applies outcomes off the caller's path: a queue per worker, sharded by
// entity so one entity's updates never run concurrently in this process.
// Submit never blocks; failures are logged and published, never returned to the round flow.
type Recorder struct {
	mu sync.Mutex

	agg *Aggregator
	log logx.Logger
	bus eventbus.Bus
	cfg RecorderConfig

	accepting bool
	queues    []chan Outcome
	sup       *rtsup.Supervisor
	inflight  sync.WaitGroup
}

func NewRecorder(cfg RecorderConfig, agg *Aggregator, log logx.Logger, bus eventbus.Bus) *Recorder {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Recorder{agg: agg, log: log.Component("stats"), bus: bus, cfg: cfg}
}

// Start launches the workers. It is idempotent.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queues != nil {
		return
	}
	r.sup = rtsup.New(ctx, rtsup.WithLogger(r.log))
	r.queues = make([]chan Outcome, r.cfg.Workers)
	for i := range r.queues {
		q := make(chan Outcome, r.cfg.QueueSize)
		r.queues[i] = q
		r.sup.GoRestart(fmt.Sprintf("stats.worker.%d", i), func(c context.Context) error {
			r.workerLoop(c, q)
			return nil
		})
	}
	r.accepting = true
}

// Stop stops intake and drains queued outcomes until ctx expires.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.queues == nil {
		r.mu.Unlock()
		return nil
	}
	r.accepting = false
	queues := r.queues
	sup := r.sup
	r.queues = nil
	r.sup = nil
	r.mu.Unlock()

	r.inflight.Wait()
	for _, q := range queues {
		close(q)
	}
	err := sup.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		sup.Cancel()
	}
	return err
}

// Submit enqueues o. It never blocks.
func (r *Recorder) Submit(o Outcome) error {
	r.mu.Lock()
	if !r.accepting {
		r.mu.Unlock()
		return ErrStopped
	}
	q := r.queues[shard(o.Mode+"/"+o.EntityID, len(r.queues))]
	r.inflight.Add(1)
	r.mu.Unlock()
	defer r.inflight.Done()

	select {
	case q <- o:
		return nil
	default:
		r.log.Warn("stats outcome dropped", logx.String("entity", o.EntityID), logx.Err(ErrQueueFull))
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeStatsFailed, Data: Event{Mode: o.Mode, EntityID: o.EntityID, Correct: o.Correct, Error: ErrQueueFull.Error()}})
		return ErrQueueFull
	}
}

func (r *Recorder) workerLoop(ctx context.Context, q <-chan Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-q:
			if !ok {
				return
			}
			r.record(ctx, o)
		}
	}
}

func (r *Recorder) record(ctx context.Context, o Outcome) {
	maxAttempts := 1 + r.cfg.RetryMax
	var lastErr error
retry:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
		rec, err := r.agg.RecordOutcome(wctx, o)
		cancel()
		if err == nil {
			r.bus.Publish(eventbus.Event{Type: eventbus.TypeStatsRecorded, Data: Event{Mode: o.Mode, EntityID: o.EntityID, Correct: o.Correct, Total: rec.Total, Percent: rec.Percent}})
			return
		}
		lastErr = err
		if errors.Is(err, ErrNoStore) || attempt == maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(r.cfg, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			break retry
		case <-t.C:
		}
	}

	r.log.Warn("stats update failed", logx.String("mode", o.Mode), logx.String("entity", o.EntityID), logx.Err(lastErr))
	r.bus.Publish(eventbus.Event{Type: eventbus.TypeStatsFailed, Data: Event{Mode: o.Mode, EntityID: o.EntityID, Correct: o.Correct, Error: lastErr.Error()}})
}

func shard(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// retryDelay is exponential (base * 2^(attempt-1)) with 0.7..1.3 jitter, capped.
func retryDelay(cfg RecorderConfig, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(d, cfg.RetryMaxDelay)
}
