package dispatch

import (
	"bytes"
	"context"

	kit "quizbot/internal/transport"
)

// Sender routes every transport call through the Dispatcher.
// Round-lifecycle code talks to a Sender, never to the adapter directly.
type Sender struct {
	ad kit.Adapter
	d  *Dispatcher
}

func NewSender(ad kit.Adapter, d *Dispatcher) *Sender {
	return &Sender{ad: ad, d: d}
}

func (s *Sender) Dispatcher() *Dispatcher { return s.d }

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return Call(ctx, s.d, "send_text", func(ctx context.Context) (kit.MessageRef, error) {
		return s.ad.SendText(ctx, to, text, opt)
	})
}

// SendPhoto sends an in-memory photo. body is re-read on each attempt.
func (s *Sender) SendPhoto(ctx context.Context, to kit.ChatTarget, body []byte, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return Call(ctx, s.d, "send_photo", func(ctx context.Context) (kit.MessageRef, error) {
		m := kit.Media{Kind: kit.MediaPhoto, Reader: bytes.NewReader(body), Caption: caption}
		return s.ad.SendMedia(ctx, to, m, opt)
	})
}

// SendFile sends one photo or video from disk.
func (s *Sender) SendFile(ctx context.Context, to kit.ChatTarget, m kit.Media, opt *kit.SendOptions) (kit.MessageRef, error) {
	return Call(ctx, s.d, "send_"+string(m.Kind), func(ctx context.Context) (kit.MessageRef, error) {
		return s.ad.SendMedia(ctx, to, m, opt)
	})
}

func (s *Sender) SendMediaGroup(ctx context.Context, to kit.ChatTarget, items []kit.Media) ([]kit.MessageRef, error) {
	return Call(ctx, s.d, "send_media_group", func(ctx context.Context) ([]kit.MessageRef, error) {
		return s.ad.SendMediaGroup(ctx, to, items)
	})
}

func (s *Sender) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return s.d.Do(ctx, "edit_text", func(ctx context.Context) error {
		return s.ad.EditText(ctx, ref, text, opt)
	})
}

// EditMarkup replaces the inline keyboard. A nil keyboard removes it.
func (s *Sender) EditMarkup(ctx context.Context, ref kit.MessageRef, kb *kit.Keyboard) error {
	return s.d.Do(ctx, "edit_markup", func(ctx context.Context) error {
		return s.ad.EditMarkup(ctx, ref, kb)
	})
}

func (s *Sender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return s.d.Do(ctx, "answer_callback", func(ctx context.Context) error {
		return s.ad.AnswerCallback(ctx, callbackID, text)
	})
}
