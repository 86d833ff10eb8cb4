package quiz

import (
	"context"
	"errors"

	"quizbot/internal/dispatch"
	kit "quizbot/internal/transport"
	logx "quizbot/pkg/logx"
)

// maxGroup is Telegram's media group size limit.
const maxGroup = 10

func toMedia(it MediaItem) kit.Media {
	kind := kit.MediaPhoto
	if it.Kind == MediaVideo {
		kind = kit.MediaVideo
	}
	return kit.Media{Kind: kind, Path: it.Path}
}

// sendBatch delivers the round's media as one group. If the group is rejected,
// videos go one by one, then photos as a group, then photos one by one.
// Only recipient loss aborts; single failed items are logged and skipped.
func (e *Engine) sendBatch(ctx context.Context, to kit.ChatTarget, batch []MediaItem) error {
	items := make([]kit.Media, 0, len(batch))
	for _, it := range batch {
		items = append(items, toMedia(it))
	}
	sent, err := e.sendGroup(ctx, to, items)
	if err == nil || errors.Is(err, dispatch.ErrRecipientUnreachable) {
		return err
	}
	rest := items[sent:]
	e.log.Warn("media group failed, sending separately", logx.Int("sent", sent), logx.Int("left", len(rest)), logx.Err(err))

	var photos []kit.Media
	for _, m := range rest {
		if m.Kind != kit.MediaVideo {
			photos = append(photos, m)
			continue
		}
		if _, err := e.d.Sender.SendFile(ctx, to, m, nil); err != nil {
			if errors.Is(err, dispatch.ErrRecipientUnreachable) {
				return err
			}
			e.log.Debug("video send failed", logx.String("path", m.Path), logx.Err(err))
		}
	}
	if len(photos) == 0 {
		return nil
	}
	sent, err = e.sendGroup(ctx, to, photos)
	if err == nil || errors.Is(err, dispatch.ErrRecipientUnreachable) {
		return err
	}
	for _, m := range photos[sent:] {
		if _, err := e.d.Sender.SendFile(ctx, to, m, nil); err != nil {
			if errors.Is(err, dispatch.ErrRecipientUnreachable) {
				return err
			}
			e.log.Debug("photo send failed", logx.String("path", m.Path), logx.Err(err))
		}
	}
	return nil
}

// sendGroup sends items in chunks of maxGroup, a lone item on its own. It
// returns how many items went out before the first failed chunk.
func (e *Engine) sendGroup(ctx context.Context, to kit.ChatTarget, items []kit.Media) (int, error) {
	sent := 0
	for sent < len(items) {
		chunk := items[sent:min(sent+maxGroup, len(items))]
		var err error
		if len(chunk) == 1 {
			_, err = e.d.Sender.SendFile(ctx, to, chunk[0], nil)
		} else {
			_, err = e.d.Sender.SendMediaGroup(ctx, to, chunk)
		}
		if err != nil {
			return sent, err
		}
		sent += len(chunk)
	}
	return sent, nil
}
