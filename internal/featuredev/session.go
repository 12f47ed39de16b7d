package featuredev

import (
	"sort"
	"sync"
	"time"
)

// Session is the state of one feature-dev tab.
type Session struct {
	TabID            string
	IsAuthenticating bool
	CreatedAt        time.Time
	CodeResultID     string
}

// SessionStorage maps tab IDs to sessions. It is shared by the UI listener
// and the auth watcher.
type SessionStorage struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStorage creates an empty storage.
func NewSessionStorage() *SessionStorage {
	return &SessionStorage{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// GetSession returns the session for tabID, creating it on first use.
func (s *SessionStorage) GetSession(tabID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getLocked(tabID)
}

// Update applies fn to the session for tabID, creating it on first use.
func (s *SessionStorage) Update(tabID string, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.getLocked(tabID))
}

// DeleteSession forgets tabID.
func (s *SessionStorage) DeleteSession(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tabID)
}

// Len returns the number of sessions.
func (s *SessionStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// AuthenticatingTabIDs returns the tabs still waiting on authentication,
// sorted.
func (s *SessionStorage) AuthenticatingTabIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, sess := range s.sessions {
		if sess.IsAuthenticating {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CompleteAuthentication clears the authenticating flag on every session
// and returns the tab IDs it cleared, sorted.
func (s *SessionStorage) CompleteAuthentication() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []string{}
	for id, sess := range s.sessions {
		if sess.IsAuthenticating {
			sess.IsAuthenticating = false
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *SessionStorage) getLocked(tabID string) *Session {
	sess, ok := s.sessions[tabID]
	if !ok {
		sess = &Session{TabID: tabID, CreatedAt: s.now()}
		s.sessions[tabID] = sess
	}
	return sess
}
