package convo

import "sync"

// Session holds the conversational state for a single user: the active
// guided flow, if any. Each Session carries its own mutex so that two
// users never contend on the same lock. The mutex guards both the flow
// pointer and the instance it points to: FlowEngine.Advance holds it
// across the entire step transition.
type Session struct {
	UserID string

	mu   sync.Mutex
	flow *FlowInstance
}

// Flow returns the active FlowInstance, or nil when no flow is in progress.
func (s *Session) Flow() *FlowInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow
}

// SetFlow installs a FlowInstance, overwriting any existing one. This is
// the sole supersession mechanism: a new flow silently replaces the old.
func (s *Session) SetFlow(f *FlowInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow = f
}

// ClearFlow removes the active flow. Idempotent: a no-op when none exists.
func (s *Session) ClearFlow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow = nil
}

// SessionStore owns all Session instances, one per user identity.
// The store-level lock guards only the map; per-user state is guarded by
// each Session's own mutex, so unrelated users never serialize.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the Session for userID, creating it on first access.
// It never fails; sessions live for the process lifetime.
func (st *SessionStore) GetOrCreate(userID string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[userID]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	// Re-check: another goroutine may have created it between locks.
	if s, ok := st.sessions[userID]; ok {
		return s
	}
	s = &Session{UserID: userID}
	st.sessions[userID] = s
	return s
}

// SetFlow installs a FlowInstance for userID, creating the session if needed.
func (st *SessionStore) SetFlow(userID string, f *FlowInstance) {
	st.GetOrCreate(userID).SetFlow(f)
}

// ClearFlow removes the active flow for userID. Idempotent.
func (st *SessionStore) ClearFlow(userID string) {
	st.GetOrCreate(userID).ClearFlow()
}

// HasFlow reports whether userID has a flow in progress.
func (st *SessionStore) HasFlow(userID string) bool {
	return st.GetOrCreate(userID).Flow() != nil
}

// Len returns the number of sessions currently held.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
