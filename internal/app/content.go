package app

import (
	"sync/atomic"

	"quizbot/internal/quiz"
)

// liveContent lets a config reload move the content directories without
// rebuilding the engine.
type liveContent struct {
	cur atomic.Pointer[quiz.DirContent]
}

func newLiveContent(qc quiz.Config) *liveContent {
	lc := &liveContent{}
	lc.Apply(qc)
	return lc
}

func (c *liveContent) Apply(qc quiz.Config) {
	c.cur.Store(&quiz.DirContent{
		Dirs: map[quiz.Mode]string{
			quiz.ModeAvatar: qc.Avatar.Dir,
			quiz.ModeArt:    qc.Art.Dir,
		},
		CaptionsFile: qc.CaptionsFile,
	})
}

func (c *liveContent) Index(mode quiz.Mode) (*quiz.Index, error) {
	return c.cur.Load().Index(mode)
}
