package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

// RetryOptions configures the retry policy of a RetryStore.
type RetryOptions struct {
	// MaxTries bounds the attempts per call, including the first one.
	MaxTries uint

	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// MaxElapsedTime bounds the total time spent on one call. Zero means no bound
	// beyond MaxTries and the caller's context.
	MaxElapsedTime time.Duration

	// Logger receives one warning per failed attempt. Defaults to NoOp logger.
	Logger logging.Logger
}

// DefaultRetryOptions tries three times starting at 50ms.
var DefaultRetryOptions = RetryOptions{
	MaxTries:        3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
}

// RetryStore decorates a DocumentStore with exponential backoff. Absence
// (core.ErrDocumentNotFound), invalid arguments and context errors are
// returned immediately; everything else is treated as transient.
type RetryStore struct {
	inner core.DocumentStore
	opts  RetryOptions
}

// NewRetryStore wraps inner with the default policy adjusted by optFns.
func NewRetryStore(inner core.DocumentStore, optFns ...func(o *RetryOptions)) *RetryStore {
	opts := DefaultRetryOptions
	opts.Logger = logging.NoOpLogger{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 1
	}

	return &RetryStore{inner: inner, opts: opts}
}

// Get fetches the user's document, retrying transient failures.
func (s *RetryStore) Get(ctx context.Context, userID int) (core.Document, error) {
	return backoff.Retry(ctx, func() (core.Document, error) {
		doc, err := s.inner.Get(ctx, userID)
		return doc, s.classify("get", userID, err)
	}, s.retryOptions()...)
}

// Put upserts the user's document, retrying transient failures.
func (s *RetryStore) Put(ctx context.Context, userID int, doc core.Document) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.classify("put", userID, s.inner.Put(ctx, userID, doc))
	}, s.retryOptions()...)
	return err
}

// Close closes the wrapped store when it supports it.
func (s *RetryStore) Close() error {
	if c, ok := s.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *RetryStore) classify(op string, userID int, err error) error {
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		return backoff.Permanent(err)
	}
	s.opts.Logger.Warn("Store call failed, will retry", "op", op, "user_id", userID, "error", err)
	return err
}

func (s *RetryStore) retryOptions() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	if s.opts.InitialInterval > 0 {
		b.InitialInterval = s.opts.InitialInterval
	}
	if s.opts.MaxInterval > 0 {
		b.MaxInterval = s.opts.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.opts.MaxTries),
	}
	if s.opts.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(s.opts.MaxElapsedTime))
	}
	return opts
}

func isPermanent(err error) bool {
	return errors.Is(err, core.ErrDocumentNotFound) ||
		errors.Is(err, core.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
