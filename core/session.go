package core

import (
	"fmt"
	"strings"
	"time"
)

// RequestType identifies the kind of request last dispatched for a session.
type RequestType int

const (
	// RequestNone means no request has been recorded yet.
	RequestNone RequestType = iota
	// RequestRead fetches the user's document.
	RequestRead
	// RequestWrite upserts the user's document.
	RequestWrite
)

// String returns the lower-case name of the request type.
func (t RequestType) String() string {
	switch t {
	case RequestNone:
		return "none"
	case RequestRead:
		return "read"
	case RequestWrite:
		return "write"
	default:
		return fmt.Sprintf("request(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t RequestType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Valid reports whether t can be dispatched.
func (t RequestType) Valid() bool { return t == RequestRead || t == RequestWrite }

// ParseRequestType parses "read"/"write" (any case) or the numeric codes
// "1"/"2" used by older scripted drivers.
func ParseRequestType(s string) (RequestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "1":
		return RequestRead, nil
	case "write", "2":
		return RequestWrite, nil
	default:
		return RequestNone, fmt.Errorf("%w: %q", ErrInvalidRequestType, s)
	}
}

// RequestStatus is the terminal outcome recorded against a session after a
// dispatch attempt reached the store.
type RequestStatus int

const (
	// StatusUnknown means no outcome has been recorded yet.
	StatusUnknown RequestStatus = iota
	// StatusSuccess means the store call completed.
	StatusSuccess
	// StatusNotFound means a read found no document. It is not an error.
	StatusNotFound
	// StatusFailed means the store returned an error.
	StatusFailed
)

// String returns the lower-case name of the status.
func (s RequestStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s RequestStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UserSession is the registry's record of one user. Values of this type are
// always copies; mutating one never affects registry state.
type UserSession struct {
	ID                int           `json:"id"`
	LoggedIn          bool          `json:"logged_in"`
	LastRequestType   RequestType   `json:"last_request_type"`
	LastRequestStatus RequestStatus `json:"last_request_status"`
	RequestCount      int           `json:"request_count"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NewUserSession returns a logged out session with default bookkeeping.
func NewUserSession(id int) UserSession {
	return UserSession{ID: id, LastRequestType: RequestNone, LastRequestStatus: StatusUnknown}
}

// SessionRegistry tracks known users, their login state and last request
// bookkeeping. Implementations must be safe for concurrent use.
//
// Contract:
//   - ids are exactly 1..Len(); AddUser appends Len()+1
//   - an id outside 1..Len() yields ErrUserNotFound from every method
//   - LoggedIn only changes via Login/Logout
//   - RecordRequestOutcome is the only writer of request bookkeeping
//   - Snapshot and Get return copies
type SessionRegistry interface {
	Initialize(n int) error
	AddUser() int
	Login(userID int) error
	Logout(userID int) error
	IsLoggedIn(userID int) (bool, error)
	RecordRequestOutcome(userID int, t RequestType, s RequestStatus) error
	Get(userID int) (UserSession, error)
	Snapshot() []UserSession
	Len() int
}
