package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/testutil"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/session"
)

func newFixture(t *testing.T, users int, optFns ...func(o *Options)) (*Dispatcher, *session.InMemoryRegistry, *testutil.CountingStore) {
	t.Helper()
	reg, err := session.NewInMemoryRegistryWithUsers(users)
	require.NoError(t, err)
	st := testutil.NewCountingStore()
	return New(reg, st, optFns...), reg, st
}

func TestDispatch_LoggedOutNeverCallsStore(t *testing.T) {
	d, reg, st := newFixture(t, 2)

	for _, rt := range []core.RequestType{core.RequestRead, core.RequestWrite} {
		res, err := d.Dispatch(context.Background(), 1, rt, core.Document("x"))
		assert.ErrorIs(t, err, core.ErrNotLoggedIn)
		assert.Equal(t, core.StatusUnknown, res.Status)
	}

	assert.Equal(t, 0, st.Calls())
	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, testutil.NewSessionBuilder(1).Build(), s)
}

func TestDispatch_InvalidUser(t *testing.T) {
	d, reg, st := newFixture(t, 1)
	before := reg.Snapshot()

	for _, id := range []int{0, 2, -7} {
		_, err := d.Read(context.Background(), id)
		assert.ErrorIs(t, err, core.ErrInvalidUser)
		assert.ErrorIs(t, err, core.ErrUserNotFound)
	}

	assert.Equal(t, 0, st.Calls())
	assert.Equal(t, before, reg.Snapshot())
}

func TestDispatch_WriteThenRead(t *testing.T) {
	d, reg, st := newFixture(t, 1)
	require.NoError(t, reg.Login(1))

	res, err := d.Write(context.Background(), 1, core.Document("hello"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.NotEmpty(t, res.RequestID)

	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, core.RequestWrite, s.LastRequestType)
	assert.Equal(t, core.StatusSuccess, s.LastRequestStatus)

	res, err = d.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, core.Document("hello"), res.Document)

	assert.Equal(t, 1, st.Puts())
	assert.Equal(t, 1, st.Gets())

	s, err = reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, s.RequestCount)
	assert.Equal(t, core.RequestRead, s.LastRequestType)
}

func TestDispatch_ReadNotFoundIsNotAnError(t *testing.T) {
	d, reg, _ := newFixture(t, 1)
	require.NoError(t, reg.Login(1))

	res, err := d.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, core.StatusNotFound, res.Status)
	assert.Nil(t, res.Document)

	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, core.StatusNotFound, s.LastRequestStatus)
	assert.Equal(t, core.RequestRead, s.LastRequestType)
}

func TestDispatch_StoreErrorsRecordFailed(t *testing.T) {
	errDown := errors.New("store unavailable")

	t.Run("write", func(t *testing.T) {
		d, reg, st := newFixture(t, 1)
		st.PutErr = errDown
		require.NoError(t, reg.Login(1))

		res, err := d.Write(context.Background(), 1, core.Document("x"))
		assert.ErrorIs(t, err, errDown)
		assert.Equal(t, core.StatusFailed, res.Status)
		assert.Equal(t, 1, st.Puts(), "no retry inside the dispatcher")

		s, err := reg.Get(1)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, s.LastRequestStatus)
		assert.Equal(t, 1, s.RequestCount)
	})

	t.Run("read", func(t *testing.T) {
		d, reg, st := newFixture(t, 1)
		st.GetErr = errDown
		require.NoError(t, reg.Login(1))

		res, err := d.Read(context.Background(), 1)
		assert.ErrorIs(t, err, errDown)
		assert.Equal(t, core.StatusFailed, res.Status)

		s, err := reg.Get(1)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, s.LastRequestStatus)
	})
}

func TestDispatch_MalformedRequestsAreRejected(t *testing.T) {
	d, reg, st := newFixture(t, 1)
	require.NoError(t, reg.Login(1))

	_, err := d.Dispatch(context.Background(), 1, core.RequestNone, nil)
	assert.ErrorIs(t, err, core.ErrInvalidRequestType)

	_, err = d.Dispatch(context.Background(), 1, core.RequestType(9), core.Document("x"))
	assert.ErrorIs(t, err, core.ErrInvalidRequestType)

	_, err = d.Write(context.Background(), 1, nil)
	assert.ErrorIs(t, err, core.ErrPayloadRequired)

	assert.Equal(t, 0, st.Calls())
	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, core.StatusUnknown, s.LastRequestStatus)
	assert.Equal(t, 0, s.RequestCount)
}

func TestDispatch_OutcomeRecordedAfterStoreReturnsWithoutLocks(t *testing.T) {
	d, reg, st := newFixture(t, 2)
	require.NoError(t, reg.Login(1))

	var during core.UserSession
	st.BeforeCall = func(_ string, userID int) {
		// would deadlock if the dispatcher held a registry lock here
		require.NoError(t, reg.Login(2))
		require.NoError(t, reg.Logout(2))
		s, err := reg.Get(userID)
		require.NoError(t, err)
		during = s
	}

	_, err := d.Write(context.Background(), 1, core.Document("x"))
	require.NoError(t, err)

	assert.Equal(t, core.StatusUnknown, during.LastRequestStatus, "outcome must not be recorded before the store returns")
	assert.Equal(t, 0, during.RequestCount)

	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, s.LastRequestStatus)
}

func TestDispatch_SlowStoreDoesNotBlockOtherUsers(t *testing.T) {
	d, reg, st := newFixture(t, 2)
	require.NoError(t, reg.Login(1))
	require.NoError(t, reg.Login(2))

	release := make(chan struct{})
	entered := make(chan struct{})
	st.BeforeCall = func(_ string, userID int) {
		if userID == 1 {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Write(context.Background(), 1, core.Document("slow"))
		done <- err
	}()
	<-entered

	// user 1's store call is in flight; user 2 must proceed
	res, err := d.Write(context.Background(), 2, core.Document("fast"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	require.NoError(t, reg.Logout(2))
	loggedIn, err := reg.IsLoggedIn(1)
	require.NoError(t, err)
	assert.True(t, loggedIn)

	close(release)
	require.NoError(t, <-done)
}

// ctxStore blocks until the call's context ends.
type ctxStore struct{}

func (ctxStore) Get(ctx context.Context, _ int) (core.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (ctxStore) Put(ctx context.Context, _ int, _ core.Document) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatch_StoreTimeout(t *testing.T) {
	reg, err := session.NewInMemoryRegistryWithUsers(1)
	require.NoError(t, err)
	require.NoError(t, reg.Login(1))

	d := New(reg, ctxStore{}, func(o *Options) { o.StoreTimeout = 10 * time.Millisecond })
	res, err := d.Read(context.Background(), 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, core.StatusFailed, res.Status)

	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, s.LastRequestStatus)
}

func TestDispatch_Scenario(t *testing.T) {
	d, reg, _ := newFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, reg.Login(1))
	res, err := d.Write(ctx, 1, core.Document("hello"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)

	require.NoError(t, reg.Logout(1))
	_, err = d.Read(ctx, 1)
	assert.ErrorIs(t, err, core.ErrNotLoggedIn)

	s, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, core.RequestWrite, s.LastRequestType)
	assert.Equal(t, core.StatusSuccess, s.LastRequestStatus, "rejected read must not overwrite the outcome")

	id := reg.AddUser()
	assert.Equal(t, 4, id)
	require.NoError(t, reg.Login(4))
	res, err = d.Write(ctx, 4, core.Document("world"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
}

func TestDispatch_ConcurrentUsers(t *testing.T) {
	const users = 32
	d, reg, st := newFixture(t, users)

	var wg sync.WaitGroup
	for id := 1; id <= users; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, reg.Login(id))
			for i := 0; i < 10; i++ {
				_, err := d.Write(context.Background(), id, core.Document{byte(id)})
				assert.NoError(t, err)
				res, err := d.Read(context.Background(), id)
				assert.NoError(t, err)
				assert.Equal(t, core.Document{byte(id)}, res.Document)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, users*20, st.Calls())
	for _, s := range reg.Snapshot() {
		assert.Equal(t, 20, s.RequestCount)
		assert.Equal(t, core.StatusSuccess, s.LastRequestStatus)
	}
}

func TestDispatch_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	d, reg, _ := newFixture(t, 1, func(o *Options) { o.Tracer = tp.Tracer("test") })

	_, err := d.Read(context.Background(), 1)
	require.ErrorIs(t, err, core.ErrNotLoggedIn)

	require.NoError(t, reg.Login(1))
	_, err = d.Write(context.Background(), 1, core.Document("x"))
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "dispatch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("sessionmesh.rejected", true))

	assert.Contains(t, spans[1].Attributes(), attribute.String("sessionmesh.status", "success"))
	assert.Contains(t, spans[1].Attributes(), attribute.Int("sessionmesh.user_id", 1))
	assert.NotEqual(t, codes.Error, spans[1].Status().Code)
}

func TestDispatch_RecordFailureStillReturnsResult(t *testing.T) {
	d, reg, st := newFixture(t, 2)
	require.NoError(t, reg.Login(2))
	st.BeforeCall = func(string, int) {
		// shrink the registry while the write is in flight
		require.NoError(t, reg.Initialize(1))
	}

	res, err := d.Write(context.Background(), 2, core.Document("x"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 1, reg.Len())
}

func TestDispatch_LogLinesCarryRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = buf
	d, reg, st := newFixture(t, 1, func(o *Options) { o.Logger = logging.NewLogger(cfg) })

	rejected, err := d.Read(context.Background(), 1)
	require.ErrorIs(t, err, core.ErrNotLoggedIn)

	require.NoError(t, reg.Login(1))
	written, err := d.Write(context.Background(), 1, core.Document("x"))
	require.NoError(t, err)

	st.GetErr = errors.New("disk on fire")
	failed, err := d.Read(context.Background(), 1)
	require.Error(t, err)

	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 3)

	assert.Equal(t, "Dispatch rejected", lines[0]["msg"])
	assert.Equal(t, rejected.RequestID, lines[0]["request_id"])

	assert.Equal(t, "Dispatch completed", lines[1]["msg"])
	assert.Equal(t, written.RequestID, lines[1]["request_id"])
	assert.EqualValues(t, 1, lines[1]["user_id"])

	assert.Equal(t, "Dispatch failed", lines[2]["msg"])
	assert.Equal(t, failed.RequestID, lines[2]["request_id"])
	assert.NotEqual(t, written.RequestID, failed.RequestID)
}
