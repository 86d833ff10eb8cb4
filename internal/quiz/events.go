package quiz

import kit "quizbot/internal/transport"

// Inbound events. Refs point at the message whose button produced the event.

type Start struct {
	User     int64
	Username string
	Chat     kit.ChatTarget
	Mode     Mode
	Ref      *kit.MessageRef // set when started from a button
}

type Menu struct {
	User int64
	Chat kit.ChatTarget
	Ref  *kit.MessageRef
}

type SelectRoundCount struct {
	User int64
	N    int
	Ref  kit.MessageRef
}

type SelectBatchSize struct {
	User int64
	Size int // BatchAll or 1..MaxBatchSize
	Ref  kit.MessageRef
}

type SubmitAnswer struct {
	User   int64
	Token  Token
	Choice int // 1-based button position
	Ref    kit.MessageRef
}

// Callbacks encodes button payloads for the engine's keyboards.
type Callbacks interface {
	Mode(m Mode) string
	Menu() string
	Rounds(n int) string
	Batch(size int) string
	Answer(tok Token, pos int) string
	Noop() string
}

// SessionEvent is the bus payload for session lifecycle events.
type SessionEvent struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
	Mode      Mode   `json:"mode"`
	Round     int    `json:"round"`
	Total     int    `json:"total"`
	Score     int    `json:"score"`
	EntityID  string `json:"entity_id,omitempty"`
	Correct   bool   `json:"correct,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
