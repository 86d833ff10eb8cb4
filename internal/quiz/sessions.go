package quiz

import (
	"sync"
	"time"
)

// SessionStore holds active sessions keyed by user id.
//
// Concurrency contract: callers hold Lock(user) for the whole
// read-modify-write of that user's session. Get/Set/Delete are themselves
// safe for concurrent use, so readers such as EvictIdle need no user lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*userLock
	now      func() time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: map[int64]*Session{},
		locks:    map[int64]*userLock{},
		now:      time.Now,
	}
}

// Lock serializes work for one user and returns the unlock func.
func (s *SessionStore) Lock(user int64) (unlock func()) {
	s.mu.Lock()
	l := s.locks[user]
	if l == nil {
		l = &userLock{}
		s.locks[user] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, user)
		}
		s.mu.Unlock()
	}
}

func (s *SessionStore) Get(user int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[user]
	return sess, ok
}

func (s *SessionStore) Set(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.LastActive = s.now()
	s.sessions[sess.UserID] = sess
}

func (s *SessionStore) Delete(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, user)
}

// Touch marks the user's session as active.
func (s *SessionStore) Touch(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[user]; ok {
		sess.LastActive = s.now()
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions inactive for longer than ttl and returns their user ids.
func (s *SessionStore) EvictIdle(ttl time.Duration) []int64 {
	if ttl <= 0 {
		return nil
	}
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for user, sess := range s.sessions {
		// A held user lock means an event is in flight.
		if l := s.locks[user]; l != nil && l.refs > 0 {
			continue
		}
		if sess.LastActive.Before(cutoff) {
			delete(s.sessions, user)
			out = append(out, user)
		}
	}
	return out
}

// SessionInfo is a point-in-time view of a session for logs.
type SessionInfo struct {
	ID    string
	Mode  Mode
	Stage Stage
	Round int
	Total int
	Score int
}

// Describe reads the user's session under its user lock.
func (s *SessionStore) Describe(user int64) (SessionInfo, bool) {
	unlock := s.Lock(user)
	defer unlock()
	sess, ok := s.Get(user)
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:    sess.ID,
		Mode:  sess.Mode,
		Stage: sess.Stage,
		Round: sess.CurrentRound,
		Total: sess.TotalRounds,
		Score: sess.Score,
	}, true
}
