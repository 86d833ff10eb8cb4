package adapter

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "quizbot/internal/transport"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		unreachable bool
		retryAfter  time.Duration
		limited     bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("network down")},
		{name: "forbidden", err: &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, unreachable: true},
		{name: "chat not found", err: fmt.Errorf("telebot: %w", errors.New("Bad Request: chat not found")), unreachable: true},
		{name: "too many requests", err: &tele.Error{Code: 429, Description: "Too Many Requests"}, limited: true, retryAfter: time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("classify(nil) = %v, want nil", got)
				}
				return
			}
			if errors.Is(got, kit.ErrRecipientUnreachable) != tt.unreachable {
				t.Fatalf("unreachable = %v, want %v (err %v)", !tt.unreachable, tt.unreachable, got)
			}
			d, ok := kit.RetryAfterOf(got)
			if ok != tt.limited {
				t.Fatalf("limited = %v, want %v", ok, tt.limited)
			}
			if ok && d != tt.retryAfter {
				t.Fatalf("retryAfter = %v, want %v", d, tt.retryAfter)
			}
		})
	}
}

func TestMarkup(t *testing.T) {
	t.Parallel()

	if markup(nil) != nil {
		t.Fatalf("markup(nil) should be nil")
	}
	rm := markup(&kit.Keyboard{Rows: [][]kit.Button{{{Text: "1", Data: "quiz:ans:1"}, {Text: "2", Data: "quiz:ans:2"}}}})
	if len(rm.InlineKeyboard) != 1 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("rows = %v, want 1 row of 2", rm.InlineKeyboard)
	}
	if got := rm.InlineKeyboard[0][1].Data; got != "quiz:ans:2" {
		t.Fatalf("data = %q, want quiz:ans:2", got)
	}
}
