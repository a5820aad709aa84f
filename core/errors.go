package core

import "errors"

var (
	// ErrInvalidArgument is returned for malformed input such as a negative
	// registry size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUserNotFound is returned when a user id is outside the live 1..N range.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidUser is the dispatch-level form of ErrUserNotFound. Dispatch
	// errors carrying it also match ErrUserNotFound.
	ErrInvalidUser = errors.New("invalid user")

	// ErrNotLoggedIn is returned when a request is dispatched for a logged out
	// user. Nothing is recorded for such requests.
	ErrNotLoggedIn = errors.New("user not logged in")

	// ErrInvalidRequestType is returned for request types other than read and write.
	ErrInvalidRequestType = errors.New("invalid request type")

	// ErrPayloadRequired is returned when a write is dispatched without a document.
	ErrPayloadRequired = errors.New("write payload required")

	// ErrDocumentNotFound is returned by a DocumentStore when the user has no
	// document. The dispatcher records it as StatusNotFound, not as a failure.
	ErrDocumentNotFound = errors.New("document not found")
)
