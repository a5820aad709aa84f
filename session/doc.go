// Package session houses the concrete core.SessionRegistry implementation.
// The interface itself (and the UserSession struct) live in the core package
// to centralize domain contracts; the dispatcher depends only on
// core.SessionRegistry, never on this package.
//
// InMemoryRegistry keeps sessions for the lifetime of the process. Entries
// are never removed; Initialize is the only way to discard them.
package session
