package app

import (
	"context"
	"fmt"
	"time"

	"quizbot/internal/bot"
	"quizbot/internal/collage"
	"quizbot/internal/config"
	"quizbot/internal/dispatch"
	"quizbot/internal/eventbus"
	"quizbot/internal/httpapi"
	"quizbot/internal/quiz"
	"quizbot/internal/runtime/supervisor"
	"quizbot/internal/scheduler"
	"quizbot/internal/stats"
	"quizbot/internal/storage"
	kit "quizbot/internal/transport"
	telegram "quizbot/internal/transport/telegram/adapter"
	"quizbot/internal/transport/telegram/router"
	logx "quizbot/pkg/logx"
)

const (
	jobDescription = "bot.description"
	jobEviction    = "quiz.evict_idle"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor
	regs *router.SupervisorRegistry

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	recorder *stats.Recorder

	adapter *telegram.Adapter
	disp    *dispatch.Dispatcher
	content *liveContent
	engine  *quiz.Engine
	bot     *bot.Bot
	router  *router.Router
	sched   *scheduler.Service
	http    *httpapi.Service

	updates chan kit.Update
	started time.Time
}

// New loads the config at cfgPath and builds every component. overlay, if
// set, is applied to each parsed config (used for secrets from the environment).
func New(cfgPath string, overlay func(*config.Config)) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetOverlay(overlay)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg))
	log := root.Component("app")
	bus := eventbus.New()

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, root.Component("telegram"))
	if err != nil {
		return nil, err
	}

	// Storage is optional; without it the quiz runs but keeps no stats.
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		if store, err = storage.Open(sc, root); err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	dcfg, _ := mapDispatchConfig(cfg)
	disp := dispatch.New(dcfg, root.Component("dispatch"))
	sender := dispatch.NewSender(ad, disp)

	qcfg, _ := mapQuizConfig(cfg)
	content := newLiveContent(qcfg)
	deps := quiz.Deps{
		Sender:    sender,
		Content:   content,
		Composer:  collage.New(qcfg.TileSize, root.Component("collage")),
		Callbacks: bot.Codec{},
		Bus:       bus,
		Log:       root,
	}

	var recorder *stats.Recorder
	if store != nil {
		agg := stats.NewAggregator(store)
		rcfg, _ := mapStatsConfig(cfg)
		recorder = stats.NewRecorder(rcfg, agg, root, bus)
		deps.Outcomes = recorder
		deps.ShowCounts = agg
		deps.Results = store
	}
	eng := quiz.NewEngine(qcfg, deps)

	b := bot.New(eng, sender, store, ad, root)

	handlerTimeout, err := config.ParseDurationOrDefault("telegram.handler_timeout", cfg.Telegram.HandlerTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	rt := router.New(router.Config{Workers: cfg.Telegram.Workers, DefaultTimeout: handlerTimeout}, root, sender)
	rt.SetRegistry(b.Commands(), b.Callbacks())

	plan, _ := mapSchedulerConfig(cfg)
	sched := scheduler.New(plan.cfg, root)

	a := &App{
		cfgm:     cfgm,
		regs:     router.NewSupervisorRegistry(),
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		recorder: recorder,
		adapter:  ad,
		disp:     disp,
		content:  content,
		engine:   eng,
		bot:      b,
		router:   rt,
		sched:    sched,
		updates:  make(chan kit.Update, 256),
	}
	if err := a.registerJobs(cfg.Scheduler.Enabled, plan); err != nil {
		return nil, err
	}
	a.http = httpapi.New(mapHTTPConfig(cfg), httpapi.Deps{Store: store, Health: a.health}, root)
	return a, nil
}

// registerJobs (re)installs the periodic jobs. The idle sweep always runs;
// the description refresh needs stats and scheduler.enabled.
func (a *App) registerJobs(descriptionOn bool, plan schedulePlan) error {
	if a.store != nil && descriptionOn {
		if err := a.sched.AddSchedule(jobDescription, plan.description, 0, a.bot.RefreshDescription); err != nil {
			return fmt.Errorf("scheduler.description_spec: %w", err)
		}
	} else {
		a.sched.Remove(jobDescription)
	}
	return a.sched.AddSchedule(jobEviction, plan.eviction, 0, func(context.Context) error {
		a.engine.EvictIdle()
		return nil
	})
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.regs.Set("app", a.sup)
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.Component("config"))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	if a.recorder != nil {
		a.recorder.Start(runCtx)
	}

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}
	a.regs.Set("telegram.adapter", a.adapter.Supervisor())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("telegram.menu", func(c context.Context) {
		a.publishMenu(c)
	})

	a.sched.Start(runCtx)
	if a.store != nil && a.cfgm.Get().Scheduler.Enabled {
		a.sup.Go0("bot.description.boot", func(c context.Context) {
			if _, err := a.sched.Trigger(c, jobDescription); err != nil {
				a.log.Debug("initial description refresh failed", logx.Err(err))
			}
		})
	}

	a.http.Start(runCtx)

	a.watchEvents()
	a.watchConfig()

	a.log.Info("app started", logx.Bool("stats", a.store != nil), logx.Bool("scheduler", a.cfgm.Get().Scheduler.Enabled))
	return nil
}

// publishMenu pushes the command list to the chat client, retrying through the dispatcher.
func (a *App) publishMenu(ctx context.Context) {
	cmds := a.router.MenuCommands()
	err := a.disp.Do(ctx, "set_my_commands", func(c context.Context) error {
		return a.adapter.UpdateMenuCommands(c, cmds)
	})
	if err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
		return
	}
	a.log.Debug("command menu updated", logx.Int("commands", len(cmds)))
}

// watchEvents logs bus traffic at debug level.
func (a *App) watchEvents() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})
}

func (a *App) health() httpapi.Report {
	rep := httpapi.Report{
		Status:      "ok",
		Uptime:      time.Since(a.started).Truncate(time.Second).String(),
		Sessions:    a.engine.Sessions().Len(),
		Supervisors: map[string]supervisor.Counters{},
		Dispatch:    a.disp.Stats(),
		Schedules:   a.sched.Snapshot(),
	}
	for name, sup := range a.regs.Snapshot() {
		rep.Supervisors[name] = sup.Counters()
	}
	if sup := a.router.Supervisor(); sup != nil {
		rep.Supervisors["telegram.router"] = sup.Counters()
	}
	if sup := a.http.Supervisor(); sup != nil {
		rep.Supervisors["http"] = sup.Counters()
	}
	if a.sup != nil && a.sup.Err() != nil {
		rep.Status = "degraded"
	}
	return rep
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// step bounds one shutdown stage so a stuck component can't stall the rest.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("http", time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("quiz", time.Second, func(context.Context) error { a.engine.Close(); return nil })
	step("stats", 3*time.Second, func(c context.Context) error {
		if a.recorder != nil {
			return a.recorder.Stop(c)
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}
