package testutil

import (
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// SessionBuilder helps construct expected sessions with fluent chaining.
// Example:
//
//	want := NewSessionBuilder(1).LoggedIn().Outcome(core.RequestWrite, core.StatusSuccess).Build()
type SessionBuilder struct {
	s core.UserSession
}

// NewSessionBuilder starts from the default session for id.
func NewSessionBuilder(id int) *SessionBuilder {
	return &SessionBuilder{s: core.NewUserSession(id)}
}

// LoggedIn marks the session as logged in (chainable).
func (b *SessionBuilder) LoggedIn() *SessionBuilder { b.s.LoggedIn = true; return b }

// Outcome records one request outcome, bumping the request count (chainable).
func (b *SessionBuilder) Outcome(t core.RequestType, s core.RequestStatus) *SessionBuilder {
	b.s.LastRequestType = t
	b.s.LastRequestStatus = s
	b.s.RequestCount++
	return b
}

// Build returns the session value. UpdatedAt is left zero; compare with
// StripTimes when asserting against registry output.
func (b *SessionBuilder) Build() core.UserSession { return b.s }

// StripTimes zeroes UpdatedAt on every session so snapshots can be compared
// with builder output.
func StripTimes(sessions ...core.UserSession) []core.UserSession {
	out := make([]core.UserSession, len(sessions))
	for i, s := range sessions {
		s.UpdatedAt = time.Time{}
		out[i] = s
	}
	return out
}
