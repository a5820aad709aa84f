// Package sessionmesh provides a high-level façade over the session registry,
// the request dispatcher and a document store. Most applications interact
// with this package by:
//  1. Creating a SessionMesh via New() (optionally overriding the default
//     in-memory registry and store) or NewFromConfig()
//  2. Growing the user set with AddUser and toggling Login / Logout
//  3. Issuing Read / Write requests that are gated on login state
//  4. Reporting with Snapshot
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable store (sqlite, bolt) and a
// structured logger.
package sessionmesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/sessionmesh/config"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/dispatch"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/store"
	"github.com/hupe1980/sessionmesh/telemetry"
)

// ErrUserLimitReached is returned by AddUser once MaxUsers users exist.
var ErrUserLimitReached = errors.New("user limit reached")

// Options configures the SessionMesh instance.
type Options struct {
	// InitialUsers is the size the default registry is initialized with.
	// Ignored when Registry is supplied.
	InitialUsers int

	// MaxUsers caps AddUser. Set to 0 for unlimited growth.
	MaxUsers int

	// StoreTimeout bounds each store call made by the dispatcher (0 = none).
	StoreTimeout time.Duration

	// Registry and Store default to in-memory implementations if not provided.
	Registry core.SessionRegistry
	Store    core.DocumentStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Tracer for dispatch spans (defaults to the global provider)
	Tracer trace.Tracer
}

// SessionMesh is the high-level façade aggregating registry, dispatcher and store.
type SessionMesh struct {
	opts       Options
	registry   core.SessionRegistry
	dispatcher *dispatch.Dispatcher

	// addMu serializes capped growth so the Len check and the append are atomic.
	addMu sync.Mutex

	closers []func(context.Context) error
}

// New creates a new SessionMesh with optional overrides. Any unset service is
// initialized with an in-memory implementation. Supplied services are not
// owned: Close does not close them.
func New(optFns ...func(o *Options)) (*SessionMesh, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxUsers < 0 {
		return nil, fmt.Errorf("%w: max users must be >= 0", core.ErrInvalidArgument)
	}

	if opts.Registry == nil {
		if opts.MaxUsers > 0 && opts.InitialUsers > opts.MaxUsers {
			return nil, fmt.Errorf("%w: initial users %d exceed max users %d", core.ErrInvalidArgument, opts.InitialUsers, opts.MaxUsers)
		}
		reg, err := session.NewInMemoryRegistryWithUsers(opts.InitialUsers, func(o *session.Options) {
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		opts.Registry = reg
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}

	d := dispatch.New(opts.Registry, opts.Store, func(o *dispatch.Options) {
		o.Logger = opts.Logger
		o.Tracer = opts.Tracer
		o.StoreTimeout = opts.StoreTimeout
	})

	return &SessionMesh{opts: opts, registry: opts.Registry, dispatcher: d}, nil
}

// NewFromConfig builds a SessionMesh from environment configuration: it opens
// the configured store backend (wrapped in a RetryStore when retries are
// enabled), sets up tracing and the logger. The mesh owns what it opened;
// call Close to release it.
func NewFromConfig(ctx context.Context, cfg config.Config) (*SessionMesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger().WithComponent("sessionmesh")

	shutdown, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	backend, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	var docs core.DocumentStore = backend
	if cfg.StoreRetries > 0 {
		docs = store.NewRetryStore(backend, func(o *store.RetryOptions) {
			o.MaxTries = cfg.StoreRetries + 1
			o.Logger = logger.WithComponent("store")
		})
	}

	mesh, err := New(func(o *Options) {
		o.InitialUsers = cfg.InitialUsers
		o.MaxUsers = cfg.MaxUsers
		o.StoreTimeout = cfg.StoreTimeout
		o.Store = docs
		o.Logger = logger
	})
	if err != nil {
		_ = backend.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	mesh.closers = append(mesh.closers,
		func(context.Context) error { return backend.Close() },
		shutdown,
	)
	logger.Info("Session mesh ready", "initial_users", cfg.InitialUsers)

	return mesh, nil
}

// AddUser registers the next user id, honoring MaxUsers.
func (m *SessionMesh) AddUser() (int, error) {
	if m.opts.MaxUsers == 0 {
		return m.registry.AddUser(), nil
	}

	m.addMu.Lock()
	defer m.addMu.Unlock()
	if m.registry.Len() >= m.opts.MaxUsers {
		return 0, fmt.Errorf("%w: %d", ErrUserLimitReached, m.opts.MaxUsers)
	}
	return m.registry.AddUser(), nil
}

// Login marks the user as logged in.
func (m *SessionMesh) Login(userID int) error { return m.registry.Login(userID) }

// Logout marks the user as logged out.
func (m *SessionMesh) Logout(userID int) error { return m.registry.Logout(userID) }

// IsLoggedIn reports the user's login state.
func (m *SessionMesh) IsLoggedIn(userID int) (bool, error) { return m.registry.IsLoggedIn(userID) }

// Read dispatches a read for the user.
func (m *SessionMesh) Read(ctx context.Context, userID int) (dispatch.Result, error) {
	return m.dispatcher.Read(ctx, userID)
}

// Write dispatches a write for the user.
func (m *SessionMesh) Write(ctx context.Context, userID int, doc core.Document) (dispatch.Result, error) {
	return m.dispatcher.Write(ctx, userID, doc)
}

// Dispatch forwards to the underlying dispatcher.
func (m *SessionMesh) Dispatch(ctx context.Context, userID int, requestType core.RequestType, payload core.Document) (dispatch.Result, error) {
	return m.dispatcher.Dispatch(ctx, userID, requestType, payload)
}

// Snapshot returns copies of all sessions ordered by id.
func (m *SessionMesh) Snapshot() []core.UserSession { return m.registry.Snapshot() }

// Session returns a copy of one user's session.
func (m *SessionMesh) Session(userID int) (core.UserSession, error) { return m.registry.Get(userID) }

// Registry exposes the underlying registry.
func (m *SessionMesh) Registry() core.SessionRegistry { return m.registry }

// Close releases resources opened by NewFromConfig. It is a no-op for
// meshes built with New.
func (m *SessionMesh) Close(ctx context.Context) error {
	var errs []error
	for _, c := range m.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
