package server

import (
	"sort"
	"sync"

	"relaychat/models"
)

// Registry is the directory of sessions keyed by username and the source
// of truth for presence. It holds at most one session per identity;
// Connect replaces unconditionally (last writer wins). Entries survive a
// disconnect with Connected=false so a later reconnect can pick up
// whatever the stale session still had queued.
//
// Every method runs under one lock, so a presence snapshot is always
// consistent with the mutation it was taken after.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Connect registers sess as the active session for its identity and marks
// it connected. It returns the session it replaced (nil for a first
// join), the sessions to broadcast to (every connected session, the new
// one included) and the online snapshot after the join.
func (r *Registry) Connect(sess *Session) (old *Session, targets []*Session, online map[string]models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old = r.sessions[sess.user.Name]
	sess.user.Connected = true
	r.sessions[sess.user.Name] = sess

	targets, online = r.connectedLocked()
	return old, targets, online
}

// Disconnect marks sess's identity as no longer connected, keeping the
// entry for a later reconnect. It reports false when sess is not the
// current connected session for that identity, so a replaced session's
// teardown never touches its successor's presence.
func (r *Registry) Disconnect(sess *Session) (targets []*Session, online map[string]models.User, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.sessions[sess.user.Name]
	if cur != sess || !cur.user.Connected {
		return nil, nil, false
	}
	cur.user.Connected = false

	targets, online = r.connectedLocked()
	return targets, online, true
}

// Get returns the session for name if it is currently connected.
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[name]
	if !ok || !sess.user.Connected {
		return nil, false
	}
	return sess, true
}

// SnapshotConnected returns the identities currently marked connected.
func (r *Registry) SnapshotConnected() map[string]models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, online := r.connectedLocked()
	return online
}

// ConnectedNames returns the connected usernames in sorted order.
func (r *Registry) ConnectedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, sess := range r.sessions {
		if sess.user.Connected {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns every registered session, connected or not.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (r *Registry) connectedLocked() ([]*Session, map[string]models.User) {
	var targets []*Session
	online := make(map[string]models.User)
	for name, sess := range r.sessions {
		if sess.user.Connected {
			targets = append(targets, sess)
			online[name] = models.User{
				Name:      sess.user.Name,
				Avatar:    sess.user.Avatar,
				Connected: true,
			}
		}
	}
	return targets, online
}
