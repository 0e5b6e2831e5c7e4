package session

import (
	"slices"
	"strings"
	"sync"

	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
)

type Outcome int

const (
	Accepted Outcome = iota
	Reconnected
	BadCredentials
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Reconnected:
		return "reconnected"
	case BadCredentials:
		return "bad credentials"
	default:
		return "unknown"
	}
}

type Credentials struct {
	Username string
	Password string
}

// Registry maps a client id to its current session. Every method is safe
// for concurrent use; each call is atomic with respect to the others.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	expected Credentials
}

// NewRegistry checks credentials on connect when expected.Username is set.
func NewRegistry(expected Credentials) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		expected: expected,
	}
}

func (r *Registry) authenticate(creds Credentials) bool {
	if r.expected.Username == "" {
		return true
	}
	return creds.Username == r.expected.Username && creds.Password == r.expected.Password
}

// OnConnect resolves a CONNECT. On success the new session replaces any
// previous one, which is returned but left open. On bad credentials the
// previous session is removed and returned so the caller can retire it, and
// no session is created.
func (r *Registry) OnConnect(clientID string, creds Credentials, transport Transport) (*Session, Outcome, *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.sessions[clientID]

	if !r.authenticate(creds) {
		if previous != nil {
			delete(r.sessions, clientID)
		}
		return nil, BadCredentials, previous
	}

	session := newSession(clientID, creds.Username, transport)
	r.sessions[clientID] = session
	if previous != nil {
		logger.InfoF("Client [%s] reconnected. Old secret %s ==> New secret %s", clientID, previous.FencingToken, session.FencingToken)
		return session, Reconnected, previous
	}
	logger.InfoF("Client [%s] connected with secret %s", clientID, session.FencingToken)
	return session, Accepted, nil
}

// IsAuthoritative reports whether token belongs to the current session of
// clientID.
func (r *Registry) IsAuthoritative(clientID, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[clientID]
	return ok && current.FencingToken == token
}

// Current returns the session registered for clientID.
func (r *Registry) Current(clientID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

// OnClose removes the session of clientID only when token is still the
// authoritative one.
func (r *Registry) OnClose(clientID, token string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[clientID]
	if !ok || current.FencingToken != token {
		return nil, false
	}
	delete(r.sessions, clientID)
	return current, true
}

// Evict removes clientID regardless of its token.
func (r *Registry) Evict(clientID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[clientID]
	if ok {
		delete(r.sessions, clientID)
	}
	return current, ok
}

// Sessions returns a snapshot ordered by client id.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b *Session) int {
		return strings.Compare(a.ClientID, b.ClientID)
	})
	return sessions
}

func (r *Registry) ClientIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
