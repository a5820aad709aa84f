package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

// entry is the mutable record behind one user id. Its fields are guarded by
// its own mutex so operations on different users never contend.
type entry struct {
	mu   sync.Mutex
	data core.UserSession
}

func (e *entry) read() core.UserSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// Options configures an InMemoryRegistry.
type Options struct {
	// Logger receives debug lines for user lifecycle changes.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Clock returns the time stamped on UpdatedAt. Defaults to time.Now.
	Clock func() time.Time
}

// InMemoryRegistry is the process local SessionRegistry. It keeps one entry
// per user in a slice indexed by id-1.
//
// Locking:
//   - mu (RWMutex) guards the slice header only. Lookups take it in read
//     mode just long enough to fetch an entry pointer; AddUser and
//     Initialize take it in write mode for the append / replace.
//   - each entry has its own mutex for field reads and writes.
//
// No lock is ever held across a call out of the registry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	entries []*entry

	logger logging.Logger
	clock  func() time.Time
}

// NewInMemoryRegistry constructs an empty registry. Call Initialize to
// populate it.
func NewInMemoryRegistry(optFns ...func(o *Options)) *InMemoryRegistry {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &InMemoryRegistry{logger: opts.Logger, clock: opts.Clock}
}

// NewInMemoryRegistryWithUsers constructs a registry and initializes it with n users.
func NewInMemoryRegistryWithUsers(n int, optFns ...func(o *Options)) (*InMemoryRegistry, error) {
	r := NewInMemoryRegistry(optFns...)
	if err := r.Initialize(n); err != nil {
		return nil, err
	}
	return r, nil
}

// Initialize replaces all state with n logged out sessions numbered 1..n.
// It is destructive: existing sessions are discarded, not merged.
func (r *InMemoryRegistry) Initialize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: registry size must be >= 0, got %d", core.ErrInvalidArgument, n)
	}

	entries := make([]*entry, n)
	for i := range entries {
		entries[i] = &entry{data: core.NewUserSession(i + 1)}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.logger.Debug("Session registry initialized", "users", n)
	return nil
}

// AddUser appends a new logged out session and returns its id.
func (r *InMemoryRegistry) AddUser() int {
	r.mu.Lock()
	id := len(r.entries) + 1
	r.entries = append(r.entries, &entry{data: core.NewUserSession(id)})
	r.mu.Unlock()

	r.logger.Debug("User added", "user_id", id)
	return id
}

// Login marks the user as logged in.
func (r *InMemoryRegistry) Login(userID int) error {
	if err := r.setLoggedIn(userID, true); err != nil {
		return err
	}
	r.logger.Debug("User logged in", "user_id", userID)
	return nil
}

// Logout marks the user as logged out.
func (r *InMemoryRegistry) Logout(userID int) error {
	if err := r.setLoggedIn(userID, false); err != nil {
		return err
	}
	r.logger.Debug("User logged out", "user_id", userID)
	return nil
}

// IsLoggedIn reports the user's login state.
func (r *InMemoryRegistry) IsLoggedIn(userID int) (bool, error) {
	e, err := r.lookup(userID)
	if err != nil {
		return false, err
	}
	return e.read().LoggedIn, nil
}

// RecordRequestOutcome stores the type and status of the user's last
// dispatched request and bumps its request count.
func (r *InMemoryRegistry) RecordRequestOutcome(userID int, t core.RequestType, s core.RequestStatus) error {
	e, err := r.lookup(userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.LastRequestType = t
	e.data.LastRequestStatus = s
	e.data.RequestCount++
	e.data.UpdatedAt = r.clock()
	return nil
}

// Get returns a copy of the user's session.
func (r *InMemoryRegistry) Get(userID int) (core.UserSession, error) {
	e, err := r.lookup(userID)
	if err != nil {
		return core.UserSession{}, err
	}
	return e.read(), nil
}

// Snapshot returns copies of all sessions ordered by id.
func (r *InMemoryRegistry) Snapshot() []core.UserSession {
	r.mu.RLock()
	entries := make([]*entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	out := make([]core.UserSession, len(entries))
	for i, e := range entries {
		out[i] = e.read()
	}
	return out
}

// Len returns the number of registered users.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *InMemoryRegistry) setLoggedIn(userID int, loggedIn bool) error {
	e, err := r.lookup(userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.LoggedIn = loggedIn
	e.data.UpdatedAt = r.clock()
	return nil
}

// lookup resolves an id to its entry; the registry lock is released before
// returning so callers only ever hold the entry lock.
func (r *InMemoryRegistry) lookup(userID int) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if userID < 1 || userID > len(r.entries) {
		return nil, fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
	}
	return r.entries[userID-1], nil
}
