package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Valkey      ValkeyConfig
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix; default "quizbot"
}

// StatRecord is the accumulated outcome counters for one entity in one mode.
// Percent is derived from Correct and Total by the writer.
type StatRecord struct {
	Mode      string    `json:"mode"`
	EntityID  string    `json:"entity_id"`
	Label     string    `json:"label"`
	Correct   int       `json:"correct"`
	Incorrect int       `json:"incorrect"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GameResult records one finished game.
type GameResult struct {
	At       time.Time `json:"at"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Mode     string    `json:"mode"`
	Score    int       `json:"score"`
	Rounds   int       `json:"rounds"`
}

func statKey(mode, id string) string { return mode + "/" + id }
