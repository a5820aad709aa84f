package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

const tracerName = "github.com/hupe1980/sessionmesh/dispatch"

// Options configures a Dispatcher using the functional options pattern.
//
// Example:
//
//	d := dispatch.New(registry, store, func(o *dispatch.Options) {
//	    o.Logger = logger
//	    o.StoreTimeout = 2 * time.Second
//	})
type Options struct {
	// Logger provides structured logging for rejected and completed requests.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Tracer starts the per-dispatch span. Defaults to the global provider's
	// tracer, which is a no-op until telemetry.Setup registers one.
	Tracer trace.Tracer

	// StoreTimeout, when positive, bounds each store call. The registry is
	// not involved in the deadline.
	StoreTimeout time.Duration
}

// Result describes a request that passed the session gate.
type Result struct {
	// RequestID correlates log lines and spans of one dispatch.
	RequestID string
	UserID    int
	Type      core.RequestType
	// Status is the recorded outcome; StatusUnknown when the request was
	// rejected before reaching the store.
	Status core.RequestStatus
	// Document holds the read document on a successful read.
	Document core.Document
}

// dispatchLogger is implemented by loggers with a dedicated dispatch helper
// (logging.SessionLogger).
type dispatchLogger interface {
	LogDispatch(userID int, requestID, requestType, status string, dur time.Duration, err error)
}

// Dispatcher gates and executes reads and writes on behalf of users.
// It is safe for concurrent use.
type Dispatcher struct {
	registry core.SessionRegistry
	store    core.DocumentStore

	logger       logging.Logger
	tracer       trace.Tracer
	storeTimeout time.Duration
}

// New creates a Dispatcher over the given registry and store. The
// dispatcher does not take ownership of either; callers manage their
// lifecycle.
func New(registry core.SessionRegistry, store core.DocumentStore, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Dispatcher{
		registry:     registry,
		store:        store,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		storeTimeout: opts.StoreTimeout,
	}
}

// Read dispatches a read for userID.
func (d *Dispatcher) Read(ctx context.Context, userID int) (Result, error) {
	return d.Dispatch(ctx, userID, core.RequestRead, nil)
}

// Write dispatches a write of doc for userID.
func (d *Dispatcher) Write(ctx context.Context, userID int, doc core.Document) (Result, error) {
	return d.Dispatch(ctx, userID, core.RequestWrite, doc)
}

// Dispatch performs a request on behalf of userID.
//
// Rejections (nothing recorded, store untouched):
//   - id outside the registry: error matching core.ErrInvalidUser and core.ErrUserNotFound
//   - user logged out: core.ErrNotLoggedIn
//   - type other than read/write: core.ErrInvalidRequestType
//   - write without payload: core.ErrPayloadRequired
//
// Otherwise the store is called once and exactly one outcome is recorded
// after it returns. A read of a missing document yields StatusNotFound and
// no error. A store error yields StatusFailed and is returned wrapped; it is
// not retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int, requestType core.RequestType, payload core.Document) (Result, error) {
	res := Result{
		RequestID: core.NewRequestID(),
		UserID:    userID,
		Type:      requestType,
		Status:    core.StatusUnknown,
	}

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("sessionmesh.request_id", res.RequestID),
		attribute.Int("sessionmesh.user_id", userID),
		attribute.String("sessionmesh.request_type", requestType.String()),
	))
	defer span.End()

	if err := d.admit(userID, requestType, payload); err != nil {
		span.SetAttributes(attribute.Bool("sessionmesh.rejected", true))
		span.SetStatus(codes.Error, err.Error())
		d.logger.Info("Dispatch rejected", "request_id", res.RequestID, "user_id", userID, "request_type", requestType.String(), "reason", err.Error())
		return res, err
	}

	start := time.Now()
	err := d.execute(ctx, &res, payload)
	dur := time.Since(start)

	if recErr := d.registry.RecordRequestOutcome(userID, requestType, res.Status); recErr != nil {
		// the registry was re-initialized while the store call was in flight
		d.logger.Warn("Outcome not recorded", "request_id", res.RequestID, "user_id", userID, "error", recErr.Error())
	}

	span.SetAttributes(attribute.String("sessionmesh.status", res.Status.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.logOutcome(res, dur, err)

	return res, err
}

// admit runs the session gate and argument checks without touching the store.
func (d *Dispatcher) admit(userID int, requestType core.RequestType, payload core.Document) error {
	loggedIn, err := d.registry.IsLoggedIn(userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return fmt.Errorf("%w: %w", core.ErrInvalidUser, err)
		}
		return err
	}
	if !loggedIn {
		return fmt.Errorf("%w: user %d", core.ErrNotLoggedIn, userID)
	}
	if !requestType.Valid() {
		return fmt.Errorf("%w: %s", core.ErrInvalidRequestType, requestType)
	}
	if requestType == core.RequestWrite && payload == nil {
		return core.ErrPayloadRequired
	}
	return nil
}

// execute performs the single store call and sets res.Status.
func (d *Dispatcher) execute(ctx context.Context, res *Result, payload core.Document) error {
	if d.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.storeTimeout)
		defer cancel()
	}

	switch res.Type {
	case core.RequestRead:
		doc, err := d.store.Get(ctx, res.UserID)
		switch {
		case err == nil:
			res.Status = core.StatusSuccess
			res.Document = doc
		case errors.Is(err, core.ErrDocumentNotFound):
			res.Status = core.StatusNotFound
		default:
			res.Status = core.StatusFailed
			return fmt.Errorf("read document for user %d: %w", res.UserID, err)
		}
	case core.RequestWrite:
		if err := d.store.Put(ctx, res.UserID, payload); err != nil {
			res.Status = core.StatusFailed
			return fmt.Errorf("write document for user %d: %w", res.UserID, err)
		}
		res.Status = core.StatusSuccess
	}
	return nil
}

func (d *Dispatcher) logOutcome(res Result, dur time.Duration, err error) {
	if dl, ok := d.logger.(dispatchLogger); ok {
		dl.LogDispatch(res.UserID, res.RequestID, res.Type.String(), res.Status.String(), dur, err)
		return
	}
	args := []any{"request_id", res.RequestID, "user_id", res.UserID, "request_type", res.Type.String(), "status", res.Status.String(), "duration", dur}
	if err != nil {
		d.logger.Error("Dispatch failed", append(args, "error", err.Error())...)
		return
	}
	d.logger.Info("Dispatch completed", args...)
}
