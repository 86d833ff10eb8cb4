// Package bot maps chat commands and button presses to quiz engine events.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quizbot/internal/dispatch"
	"quizbot/internal/quiz"
	"quizbot/internal/stats"
	"quizbot/internal/storage"
	kit "quizbot/internal/transport"
	"quizbot/internal/transport/telegram/router"
	logx "quizbot/pkg/logx"
	"quizbot/pkg/tgui"
)

type Bot struct {
	eng   *quiz.Engine
	out   *dispatch.Sender
	store storage.Store
	desc  kit.DescriptionUpdater
	log   logx.Logger
}

// New wires the handlers. store and desc may be nil.
func New(eng *quiz.Engine, out *dispatch.Sender, store storage.Store, desc kit.DescriptionUpdater, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{eng: eng, out: out, store: store, desc: desc, log: log.Component("bot")}
}

func (b *Bot) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Aliases: []string{"game"}, Description: "Choose a game", Handle: b.menu},
		{Name: "avatars", Description: "Guess the avatar", Handle: b.startMode(quiz.ModeAvatar)},
		{Name: "arts", Description: "Guess the artist", Handle: b.startMode(quiz.ModeArt)},
		{Name: "total", Description: "Rounds played so far", Timeout: 15 * time.Second, Handle: b.total},
	}
}

func (b *Bot) Callbacks() []router.CallbackRoute {
	route := func(action string, h router.CallbackHandlerFunc) router.CallbackRoute {
		return router.CallbackRoute{Scope: Scope, Action: action, Handle: b.annotated(h)}
	}
	return []router.CallbackRoute{
		route(ActionMode, b.onMode),
		route(ActionMenu, b.onMenu),
		route(ActionRounds, b.onRounds),
		route(ActionBatch, b.onBatch),
		route(ActionAnswer, b.onAnswer),
		route(ActionNoop, func(context.Context, *router.Request, string) error { return nil }),
	}
}

// annotated tags the request log with the user's session after h ran.
func (b *Bot) annotated(h router.CallbackHandlerFunc) router.CallbackHandlerFunc {
	return func(ctx context.Context, req *router.Request, payload string) error {
		err := h(ctx, req, payload)
		if info, ok := b.eng.Sessions().Describe(req.FromID); ok {
			req.Annotate(
				logx.String("session", info.ID),
				logx.String("stage", info.Stage.String()),
				logx.Int("round", info.Round),
				logx.Int("rounds", info.Total),
			)
		}
		return err
	}
}

func (b *Bot) menu(ctx context.Context, req *router.Request) error {
	return b.eng.ShowMenu(ctx, quiz.Menu{User: req.FromID, Chat: req.Chat})
}

func (b *Bot) startMode(m quiz.Mode) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		return b.eng.Start(ctx, quiz.Start{User: req.FromID, Username: req.Username, Chat: req.Chat, Mode: m})
	}
}

func (b *Bot) total(ctx context.Context, req *router.Request) error {
	text, err := b.Describe(ctx)
	if err != nil {
		_, serr := b.out.SendText(ctx, req.Chat, "Statistics are unavailable.", nil)
		if serr != nil {
			return serr
		}
		return err
	}
	msg, opt := tgui.New().Title("📊", "Total").Text(text).Build()
	if _, err := b.out.SendText(ctx, req.Chat, msg, opt); err != nil {
		return err
	}
	if err := b.publishDescription(ctx, text); err != nil {
		req.Logger.Debug("short description not updated", logx.Err(err))
	}
	return nil
}

// Describe renders the rounds-played summary.
func (b *Bot) Describe(ctx context.Context) (string, error) {
	ov, err := stats.Summarize(ctx, b.store)
	if err != nil {
		return "", err
	}
	return ov.Describe(b.eng.KnownEntities()), nil
}

// RefreshDescription updates the bot's short description from the stats store.
func (b *Bot) RefreshDescription(ctx context.Context) error {
	text, err := b.Describe(ctx)
	if err != nil {
		return err
	}
	return b.publishDescription(ctx, text)
}

func (b *Bot) publishDescription(ctx context.Context, text string) error {
	if b.desc == nil {
		return nil
	}
	return b.out.Dispatcher().Do(ctx, "set_short_description", func(ctx context.Context) error {
		return b.desc.SetShortDescription(ctx, text)
	})
}

func (b *Bot) onMode(ctx context.Context, req *router.Request, payload string) error {
	m, ok := quiz.ParseMode(payload)
	if !ok {
		return fmt.Errorf("unknown mode %q", payload)
	}
	ref := req.Message
	return b.eng.Start(ctx, quiz.Start{User: req.FromID, Username: req.Username, Chat: req.Chat, Mode: m, Ref: &ref})
}

func (b *Bot) onMenu(ctx context.Context, req *router.Request, _ string) error {
	ref := req.Message
	return b.eng.ShowMenu(ctx, quiz.Menu{User: req.FromID, Chat: req.Chat, Ref: &ref})
}

func (b *Bot) onRounds(ctx context.Context, req *router.Request, payload string) error {
	n, err := ParseRounds(payload)
	if err != nil {
		return err
	}
	return b.eng.SelectRoundCount(ctx, quiz.SelectRoundCount{User: req.FromID, N: n, Ref: req.Message})
}

func (b *Bot) onBatch(ctx context.Context, req *router.Request, payload string) error {
	size, err := ParseBatch(payload)
	if err != nil {
		return err
	}
	return b.eng.SelectBatchSize(ctx, quiz.SelectBatchSize{User: req.FromID, Size: size, Ref: req.Message})
}

func (b *Bot) onAnswer(ctx context.Context, req *router.Request, payload string) error {
	tok, pos, err := ParseAnswer(strings.TrimSpace(payload))
	if err != nil {
		return err
	}
	return b.eng.SubmitAnswer(ctx, quiz.SubmitAnswer{User: req.FromID, Token: tok, Choice: pos, Ref: req.Message})
}
