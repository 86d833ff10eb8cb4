package app

import (
	"context"
	"strings"

	"quizbot/internal/config"
	"quizbot/internal/eventbus"
	logx "quizbot/pkg/logx"
)

// ReloadEvent is published on the bus after a config reload was applied.
type ReloadEvent struct {
	Changed         []string `json:"changed"`
	RestartRequired []string `json:"restart_required,omitempty"`
}

func (a *App) watchConfig() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
}

// applyConfig pushes the live-reloadable sections into running components.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLoggingConfig(next))

	if qcfg, err := mapQuizConfig(next); err != nil {
		a.log.Warn("invalid quiz config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(qcfg)
		a.content.Apply(qcfg)
	}

	if plan, err := mapSchedulerConfig(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(plan.cfg)
		if err := a.registerJobs(next.Scheduler.Enabled, plan); err != nil {
			a.log.Warn("schedule update failed", logx.Err(err))
		}
	}

	restart := config.RestartRequired(changed)
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: ReloadEvent{Changed: changed, RestartRequired: restart}})

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
