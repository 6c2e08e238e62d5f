package auth

import (
	"sync"

	"github.com/voltparts/storefront/internal/roles"
)

// State is a snapshot of the authentication context.
type State struct {
	User    *Identity
	Profile *Profile
	Role    roles.Role
	Loading bool
}

// Authenticated reports whether a user is present.
func (s State) Authenticated() bool {
	return s.User != nil
}

// HasPermission reports whether the current role grants p. It is false
// while no role is known or the role is missing from the table.
func (s State) HasPermission(p roles.Permission) bool {
	if s.Role == roles.RoleNone {
		return false
	}
	return roles.Grants(s.Role, p)
}

// Session is the authentication context of one request or client session.
// It starts loading, caches the latest identity published by the provider
// and republishes every change to its subscribers.
type Session struct {
	mu     sync.RWMutex
	state  State
	subs   []subscriber
	nextID uint64
}

type subscriber struct {
	id uint64
	fn func(State)
}

// NewSession returns a session in the loading state.
func NewSession() *Session {
	return &Session{state: State{Loading: true}}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HasPermission checks p against the current snapshot.
func (s *Session) HasPermission(p roles.Permission) bool {
	return s.State().HasPermission(p)
}

// Resolve publishes the latest (user, profile) pair. A nil user moves the
// session to the unauthenticated state.
func (s *Session) Resolve(user *Identity, profile *Profile) {
	next := State{}
	if user != nil {
		next.User = user
		next.Profile = profile
		if profile != nil {
			next.Role, _ = roles.Parse(profile.Role)
		}
	}
	s.publish(next)
}

// Invalidate resets the session to unauthenticated, as on logout.
func (s *Session) Invalidate() {
	s.publish(State{})
}

// Subscribe registers fn for every subsequent state change. The returned
// func removes the subscription.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Session) publish(next State) {
	s.mu.Lock()
	s.state = next
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}
