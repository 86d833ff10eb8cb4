package adapter

import (
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "quizbot/internal/transport"
)

// Descriptions Telegram returns for recipients that will never accept messages again.
var unreachableHints = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"bot was kicked",
	"bot can't initiate conversation",
}

// classify maps telebot errors onto the transport error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var fe tele.FloodError
	if errors.As(err, &fe) {
		return kit.RateLimited(time.Duration(fe.RetryAfter)*time.Second, err)
	}
	var fep *tele.FloodError
	if errors.As(err, &fep) && fep != nil {
		return kit.RateLimited(time.Duration(fep.RetryAfter)*time.Second, err)
	}

	var te *tele.Error
	if errors.As(err, &te) && te != nil {
		switch te.Code {
		case http.StatusTooManyRequests:
			return kit.RateLimited(time.Second, err)
		case http.StatusForbidden:
			return kit.Unreachable(err)
		}
	}

	msg := strings.ToLower(err.Error())
	for _, h := range unreachableHints {
		if strings.Contains(msg, h) {
			return kit.Unreachable(err)
		}
	}
	return err
}
