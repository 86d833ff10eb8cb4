package tgui

import (
	"strings"

	kit "quizbot/internal/transport"
)

// Builder assembles an HTML message and its send options.
// Default: ParseMode=HTML, DisablePreview=true.
type Builder struct {
	lines []string
	kb    *kit.Keyboard
}

func New() *Builder { return &Builder{} }

// Title adds a bold title line with an optional emoji.
func (b *Builder) Title(emoji, title string) *Builder {
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	b.lines = append(b.lines, JoinH(" ", Esc(strings.TrimSpace(emoji)), B(t)).String())
	return b
}

// Line adds a line of already-safe HTML.
func (b *Builder) Line(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

// Text adds an escaped plain-text line.
func (b *Builder) Text(s string) *Builder { return b.Line(Esc(s)) }

// KV adds a "key: value" line with a bold key.
func (b *Builder) KV(k, v string) *Builder {
	return b.Line(H(B(k).String() + ": " + Esc(v).String()))
}

func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil {
		b.kb = nil
		return b
	}
	b.kb = kb.Keyboard()
	return b
}

// Build returns the message text and send options.
func (b *Builder) Build() (string, *kit.SendOptions) {
	return strings.Join(b.lines, "\n"), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, Keyboard: b.kb}
}
