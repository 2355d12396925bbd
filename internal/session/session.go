// Package session tracks whether a user is signed in. Authentication itself
// happens elsewhere; only the resulting user id is kept here.
package session

import "sync"

// Listener receives the user id after sign-in, or "" after sign-out.
type Listener func(userID string)

type Session struct {
	mu        sync.Mutex
	userID    string
	listeners []Listener
}

func New(userID string) *Session {
	return &Session{userID: userID}
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) Authenticated() bool {
	return s.UserID() != ""
}

// OnChange registers l for every sign-in, sign-out or user switch.
func (s *Session) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SignIn switches to userID. Signing in as the current user is a no-op.
func (s *Session) SignIn(userID string) {
	s.change(userID)
}

func (s *Session) SignOut() {
	s.change("")
}

func (s *Session) change(userID string) {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(userID)
	}
}
