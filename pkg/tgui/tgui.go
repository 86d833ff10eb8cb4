package tgui

import kit "quizbot/internal/transport"

// Inline is a small builder for inline keyboards.
type Inline struct {
	kb kit.Keyboard
}

func NewInline() *Inline { return &Inline{} }

// Row appends a row of buttons. Empty rows are skipped.
func (i *Inline) Row(btn ...kit.Button) *Inline {
	if len(btn) > 0 {
		i.kb.Rows = append(i.kb.Rows, append([]kit.Button(nil), btn...))
	}
	return i
}

// Grid appends buttons cols per row. When filler is non-nil the last row is
// padded with it so every row has the same width.
func (i *Inline) Grid(cols int, buttons []kit.Button, filler *kit.Button) *Inline {
	if cols <= 0 {
		cols = 1
	}
	for start := 0; start < len(buttons); start += cols {
		end := min(start+cols, len(buttons))
		row := append([]kit.Button(nil), buttons[start:end]...)
		for filler != nil && len(row) < cols {
			row = append(row, *filler)
		}
		i.kb.Rows = append(i.kb.Rows, row)
	}
	return i
}

// Keyboard returns the built keyboard.
func (i *Inline) Keyboard() *kit.Keyboard {
	kb := kit.Keyboard{Rows: append([][]kit.Button(nil), i.kb.Rows...)}
	return &kb
}

// Btn creates a callback button with raw callback data (not encoded).
func Btn(text, data string) kit.Button {
	return kit.Button{Text: text, Data: data}
}

// Empty returns a keyboard that clears existing markup when edited in.
func Empty() *kit.Keyboard { return &kit.Keyboard{} }
