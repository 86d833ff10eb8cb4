package bot

import (
	"fmt"
	"strconv"
	"strings"

	"quizbot/internal/quiz"
	"quizbot/pkg/tgui"
)

// Scope is the callback namespace of every quiz button.
const Scope = "quiz"

const (
	ActionMode   = "mode"
	ActionMenu   = "menu"
	ActionRounds = "rounds"
	ActionBatch  = "batch"
	ActionAnswer = "ans"
	ActionNoop   = "noop"
)

// Codec encodes quiz buttons as "quiz:<action>:<payload>".
type Codec struct{}

var _ quiz.Callbacks = Codec{}

func (Codec) Mode(m quiz.Mode) string { return tgui.Data(Scope, ActionMode, string(m)) }
func (Codec) Menu() string            { return tgui.Data(Scope, ActionMenu, "") }
func (Codec) Rounds(n int) string     { return tgui.Data(Scope, ActionRounds, strconv.Itoa(n)) }
func (Codec) Noop() string            { return tgui.Data(Scope, ActionNoop, "") }

func (Codec) Batch(size int) string {
	if size == quiz.BatchAll {
		return tgui.Data(Scope, ActionBatch, "all")
	}
	return tgui.Data(Scope, ActionBatch, strconv.Itoa(size))
}

func (Codec) Answer(tok quiz.Token, pos int) string {
	return tgui.Data(Scope, ActionAnswer, tok.String()+"."+strconv.Itoa(pos))
}

func ParseRounds(payload string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad round count %q", payload)
	}
	return n, nil
}

func ParseBatch(payload string) (int, error) {
	p := strings.TrimSpace(payload)
	if p == "all" {
		return quiz.BatchAll, nil
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad batch size %q", payload)
	}
	return n, nil
}

// ParseAnswer decodes "<round>.<seq>.<pos>".
func ParseAnswer(payload string) (quiz.Token, int, error) {
	i := strings.LastIndexByte(payload, '.')
	if i < 0 {
		return quiz.Token{}, 0, fmt.Errorf("bad answer %q", payload)
	}
	tok, err := quiz.ParseToken(payload[:i])
	if err != nil {
		return quiz.Token{}, 0, err
	}
	pos, err := strconv.Atoi(payload[i+1:])
	if err != nil || pos <= 0 {
		return quiz.Token{}, 0, fmt.Errorf("bad answer position %q", payload)
	}
	return tok, pos, nil
}
