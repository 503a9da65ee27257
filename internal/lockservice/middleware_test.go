package lockservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobRouter(lm *ResourceLockManager, h http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()
	jobs := r.PathPrefix("/api/jobs").Subrouter()
	jobs.Use(lm.Middleware("job"))
	jobs.HandleFunc("", h).Methods(http.MethodGet, http.MethodPost)
	jobs.HandleFunc("/{id}", h).Methods(http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	return r
}

func TestMiddlewareHoldsLockDuringHandler(t *testing.T) {
	lm := newTestManager(Options{})
	var sawLocked bool
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		sawLocked = lm.IsLocked(NewLockKey("job", mux.Vars(r)["id"]))
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/jobs/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawLocked)
	assert.False(t, lm.IsLocked(NewLockKey("job", "42")), "lock must be released after the response")
}

func TestMiddlewareReadOnlyPassThrough(t *testing.T) {
	lm := newTestManager(Options{})
	require.NoError(t, lm.Acquire(context.Background(), NewLockKey("job", "42"), 0))

	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	start := time.Now()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, lm.IsLocked(NewLockKey("job", "42")))
}

func TestMiddlewareSkipsWithoutID(t *testing.T) {
	lm := newTestManager(Options{})
	var called bool
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Empty(t, lm.Locks())
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddlewareConflict(t *testing.T) {
	lm := newTestManager(Options{MaxWait: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	var calls int32
	unblock := make(chan struct{})
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-unblock
		w.WriteHeader(http.StatusOK)
	})

	first := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/jobs/42", nil))
		first <- rec.Code
	}()
	require.Eventually(t, func() bool { return lm.IsLocked(NewLockKey("job", "42")) }, time.Second, time.Millisecond)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/42", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ConflictMessage, body["error"])

	close(unblock)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, lm.IsLocked(NewLockKey("job", "42")))
}

func TestMiddlewareSerializesWithinMaxWait(t *testing.T) {
	lm := newTestManager(Options{PollInterval: 10 * time.Millisecond})
	var calls int32
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	codes := make(chan int, 2)
	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		go func(method string) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, "/api/jobs/42", nil))
			codes <- rec.Code
		}(method)
	}
	assert.Equal(t, http.StatusOK, <-codes)
	assert.Equal(t, http.StatusOK, <-codes)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMiddlewareReleasesOnPanic(t *testing.T) {
	lm := newTestManager(Options{})
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	})

	func() {
		defer func() { recover() }()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/jobs/9", nil))
	}()
	assert.False(t, lm.IsLocked(NewLockKey("job", "9")))
}

func TestMiddlewareOtherErrorsGoToErrorHandler(t *testing.T) {
	var handled error
	lm := newTestManager(Options{
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			handled = err
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})
	require.NoError(t, lm.Acquire(context.Background(), NewLockKey("job", "42"), 0))

	var called bool
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/jobs/42", nil).WithContext(ctx))

	assert.False(t, called)
	assert.True(t, errors.Is(handled, context.Canceled))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Len(t, lm.Locks(), 1)
}

func TestMiddlewareGoneClientNeverReachesHandler(t *testing.T) {
	lm := newTestManager(Options{})
	var called bool
	r := newJobRouter(lm, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/5", nil).WithContext(ctx))

	assert.False(t, called)
	assert.Empty(t, lm.Locks())
	assert.Empty(t, rec.Body.String(), "nothing is written for a client that went away")
}
