package agent

import (
	"sync"
	"time"
)

// store keeps all sessions, active and completed. Completed sessions stay
// queryable until an explicit purge.
type store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newStore() *store {
	return &store{sessions: make(map[string]*session)}
}

func (st *store) add(s *session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.id] = s
}

func (st *store) get(id string) (*session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *store) len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *store) all() []*session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// purgeCompleted removes sessions that finished before the cutoff and
// returns how many were dropped. In-progress sessions are never purged.
func (st *store) purgeCompleted(cutoff time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		s.mu.Lock()
		done := s.result.Terminal() && s.completedAt != nil && s.completedAt.Before(cutoff)
		s.mu.Unlock()
		if done {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
