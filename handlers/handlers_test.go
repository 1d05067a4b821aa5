package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ericfialkowski/urlshort/dao"
	"github.com/ericfialkowski/urlshort/shortener"
	"github.com/ericfialkowski/urlshort/status"
	"github.com/gavv/httpexpect/v2"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testToken = "secret"

// brokenDao fails every call the way an unreachable backend would.
type brokenDao struct{}

var errBackendDown = errors.New("dial tcp 10.0.0.1:6379: connection refused")

func (brokenDao) IsLikelyOk() bool { return false }
func (brokenDao) Get(context.Context, string) (dao.Record, error) {
	return dao.Record{}, errBackendDown
}
func (brokenDao) Set(context.Context, string, dao.Record) error    { return errBackendDown }
func (brokenDao) Create(context.Context, string, dao.Record) error { return errBackendDown }
func (brokenDao) IncrementVisits(context.Context, string) (dao.Record, error) {
	return dao.Record{}, errBackendDown
}
func (brokenDao) Cleanup() {}

func setupTestHandlers(t *testing.T, d dao.RecordDao) (*Handlers, *echo.Echo, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	s := status.NewStatus()
	s.Ok("test")
	h := CreateHandlers(shortener.NewService(d, testToken, 3), s, "test-id", nil, zap.New(core), true)
	e := echo.New()
	h.SetUp(e)
	return h, e, logs
}

func newMemoryHandlers(t *testing.T) (*Handlers, *echo.Echo, dao.RecordDao) {
	t.Helper()
	d := dao.CreateMemoryDB(0)
	t.Cleanup(d.Cleanup)
	h, e, _ := setupTestHandlers(t, d)
	return h, e, d
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestCreateHandlers(t *testing.T) {
	h, _, _ := newMemoryHandlers(t)

	assert.Equal(t, "test-id", h.id)
	assert.False(t, h.counters.started.IsZero())
}

func TestHandlers_AddHandler_GeneratedId(t *testing.T) {
	h, e, d := newMemoryHandlers(t)

	req := jsonRequest(http.MethodPost, "/", `{"url":"https://example.com"}`)
	req.Header.Set(TokenHeader, testToken)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.addHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result urlReturn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "https://example.com", result.Url)
	assert.Len(t, result.Id, 3)

	stored, err := d.Get(context.Background(), result.Id)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", stored.Url)
	assert.Equal(t, int64(1), h.counters.created.Load())
}

func TestHandlers_AddHandler_Form(t *testing.T) {
	h, e, _ := newMemoryHandlers(t)

	form := url.Values{"url": {"https://example.com"}, "id": {"form-id"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(TokenHeader, testToken)
	rec := httptest.NewRecorder()

	require.NoError(t, h.addHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","url":"https://example.com","id":"form-id"}`, rec.Body.String())
}

func TestHandlers_AddHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		body    string
		code    int
		message string
	}{
		{"missing token", "", `{"url":"https://example.com"}`, http.StatusForbidden, "access denied, token is missing"},
		{"wrong token", "nope", `{"url":"https://example.com"}`, http.StatusForbidden, "access denied, token is missing"},
		{"missing url", testToken, `{"id":"abc"}`, http.StatusBadRequest, "url is missing"},
		{"empty body", testToken, ``, http.StatusBadRequest, "url is missing"},
		{"invalid id", testToken, `{"url":"https://x.com","id":"bad id!"}`, http.StatusBadRequest,
			"accepted characters for id are: [0-9a-zA-Z_-]"},
		{"taken id", testToken, `{"url":"https://x.com","id":"taken"}`, http.StatusBadRequest, "given id already exists"},
		{"broken json", testToken, `{"url":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e, d := newMemoryHandlers(t)
			require.NoError(t, d.Create(context.Background(), "taken", dao.NewRecord("taken", "https://a.com")))

			req := jsonRequest(http.MethodPost, "/", tt.body)
			req.Header.Set(TokenHeader, tt.token)
			rec := httptest.NewRecorder()

			require.NoError(t, h.addHandler(e.NewContext(req, rec)))
			assert.Equal(t, tt.code, rec.Code)

			var result errorReturn
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, "error", result.Status)
			if tt.message != "" {
				assert.Equal(t, tt.message, result.Error)
			}
			assert.Equal(t, int64(0), h.counters.created.Load())
			assert.Equal(t, int64(1), h.counters.errors.Load())
		})
	}
}

func TestHandlers_GetHandler_Found(t *testing.T) {
	h, e, d := newMemoryHandlers(t)
	require.NoError(t, d.Create(context.Background(), "test1", dao.NewRecord("test1", "https://example.com")))

	req := httptest.NewRequest(http.MethodGet, "/test1", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.getHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))

	stored, err := d.Get(context.Background(), "test1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Visits)
	assert.Equal(t, int64(1), h.counters.redirects.Load())
}

func TestHandlers_GetHandler_NotFound(t *testing.T) {
	for _, target := range []string{"/nonexistent", "/nonexistent+", "/"} {
		t.Run(target, func(t *testing.T) {
			h, e, _ := newMemoryHandlers(t)

			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()

			require.NoError(t, h.getHandler(e.NewContext(req, rec)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"status":"error","error":"url with given id does not exist"}`, rec.Body.String())
		})
	}
}

func TestHandlers_StatsHandler(t *testing.T) {
	h, e, d := newMemoryHandlers(t)
	require.NoError(t, d.Set(context.Background(), "stat1", dao.Record{Url: "https://example.com", Visits: 4}))

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/stat1+", nil)
		rec := httptest.NewRecorder()

		require.NoError(t, h.getHandler(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"success","visits":4,"url":"https://example.com","id":"stat1"}`, rec.Body.String())
	}
	assert.Equal(t, int64(3), h.counters.stats.Load())
}

func TestHandlers_MethodHandler(t *testing.T) {
	h, e, _ := newMemoryHandlers(t)

	req := httptest.NewRequest(http.MethodDelete, "/abc", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.methodHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","error":"invalid HTTP method: DELETE"}`, rec.Body.String())
}

func TestHandlers_BackendFault(t *testing.T) {
	h, e, logs := setupTestHandlers(t, brokenDao{})

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.getHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","error":"Internal Server Error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")

	failures := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, failures, 1)
	assert.Equal(t, "request failed", failures[0].Message)
	assert.Equal(t, int64(http.StatusInternalServerError), failures[0].ContextMap()["status"])
}

func TestHandlers_RequestLogging(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	h, e, logs := setupTestHandlers(t, d)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.getHandler(e.NewContext(req, rec)))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/missing", fields["path"])
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
}

func TestHandlers_MetricsHandler(t *testing.T) {
	h, e, _ := newMemoryHandlers(t)
	h.counters.redirects.Add(2)
	h.counters.errors.Add(1)

	req := httptest.NewRequest(http.MethodGet, "/diag/metrics", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.metricsHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(2), result.Redirects)
	assert.Equal(t, int64(1), result.Errors)
	assert.NotEmpty(t, result.Uptime)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{shortener.ErrAccessDenied, http.StatusForbidden},
		{shortener.ErrMissingField, http.StatusBadRequest},
		{shortener.ErrInvalidIdentifier, http.StatusBadRequest},
		{shortener.ErrIdentifierConflict, http.StatusBadRequest},
		{shortener.ErrAllocationExhausted, http.StatusBadRequest},
		{shortener.ErrNotFound, http.StatusBadRequest},
		{badRequest{msg: "invalid HTTP method: PUT"}, http.StatusBadRequest},
		{errBackendDown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, statusFor(tt.err))
		})
	}
}

func newServer(t *testing.T, d dao.RecordDao) *httpexpect.Expect {
	t.Helper()
	_, e, _ := setupTestHandlers(t, d)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return httpexpect.Default(t, server.URL)
}

func TestEndToEnd(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	api := newServer(t, d)

	created := api.POST("/").
		WithHeader(TokenHeader, testToken).
		WithJSON(map[string]string{"url": "https://example.com"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	created.HasValue("status", "success")
	created.HasValue("url", "https://example.com")
	id := created.Value("id").String().Raw()
	assert.Regexp(t, `^[0-9a-zA-Z_-]{3}$`, id)

	api.GET("/"+id).
		WithRedirectPolicy(httpexpect.DontFollowRedirects).
		Expect().
		Status(http.StatusFound).
		Header("Location").IsEqual("https://example.com")

	stats := api.GET("/" + id + "+").
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	stats.IsEqual(map[string]any{"status": "success", "visits": 1, "url": "https://example.com", "id": id})
}

func TestEndToEnd_CustomId(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	api := newServer(t, d)

	api.POST("/").
		WithHeader(TokenHeader, testToken).
		WithJSON(map[string]string{"url": "https://a.com", "id": "my-id"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().HasValue("id", "my-id")

	api.POST("/").
		WithHeader(TokenHeader, testToken).
		WithJSON(map[string]string{"url": "https://b.com", "id": "my-id"}).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().
		HasValue("status", "error").
		HasValue("error", "given id already exists")

	api.POST("/").
		WithHeader(TokenHeader, testToken).
		WithJSON(map[string]string{"url": "https://x.com", "id": "bad id!"}).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().
		HasValue("error", "accepted characters for id are: [0-9a-zA-Z_-]")

	api.GET("/my-id").
		WithRedirectPolicy(httpexpect.DontFollowRedirects).
		Expect().
		Status(http.StatusFound).
		Header("Location").IsEqual("https://a.com")
}

func TestEndToEnd_AccessDenied(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	api := newServer(t, d)

	api.POST("/").
		WithJSON(map[string]string{"url": "https://example.com", "id": "abc"}).
		Expect().
		Status(http.StatusForbidden).
		JSON().Object().
		HasValue("error", "access denied, token is missing")

	_, err := d.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestEndToEnd_Methods(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	api := newServer(t, d)

	methods := []string{http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodTrace}
	for _, path := range []string{"/", "/abc", "/a/b"} {
		for _, method := range methods {
			api.Request(method, path).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object().
				HasValue("status", "error").
				HasValue("error", "invalid HTTP method: "+method)
		}

		// no body on HEAD, the status still says what went wrong
		api.HEAD(path).
			Expect().
			Status(http.StatusBadRequest)
	}
}

func TestEndToEnd_SubmitIgnoresPath(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	api := newServer(t, d)

	api.POST("/abc").
		WithHeader(TokenHeader, testToken).
		WithJSON(map[string]string{"url": "https://example.com", "id": "xyz"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		HasValue("id", "xyz")

	api.POST("/a/b").
		WithJSON(map[string]string{"url": "https://example.com"}).
		Expect().
		Status(http.StatusForbidden).
		JSON().Object().
		HasValue("error", "access denied, token is missing")

	_, err := d.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestEndToEnd_UnroutedPath(t *testing.T) {
	d := dao.CreateMemoryDB(0)
	defer d.Cleanup()
	api := newServer(t, d)

	for _, path := range []string{"/a/b", "/a/b+", "/diag/unknown"} {
		api.GET(path).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", "error").
			HasValue("error", "url with given id does not exist")
	}
}

func TestHandlers_ErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
		level   zapcore.Level
	}{
		{"echo not found", echo.ErrNotFound, http.StatusBadRequest, "Not Found", zapcore.WarnLevel},
		{"echo method not allowed", echo.ErrMethodNotAllowed, http.StatusBadRequest, "Method Not Allowed", zapcore.WarnLevel},
		{"echo server error", echo.ErrServiceUnavailable, http.StatusInternalServerError, "Internal Server Error", zapcore.ErrorLevel},
		{"plain error", errBackendDown, http.StatusInternalServerError, "Internal Server Error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e, logs := setupTestHandlers(t, dao.CreateMemoryDB(0))

			req := httptest.NewRequest(http.MethodGet, "/abc", nil)
			rec := httptest.NewRecorder()
			h.errorHandler(e.NewContext(req, rec), tt.err)

			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, `{"status":"error","error":"`+tt.message+`"}`, rec.Body.String())

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
		})
	}
}

func TestHandlers_ErrorHandler_Committed(t *testing.T) {
	h, e, logs := setupTestHandlers(t, dao.CreateMemoryDB(0))

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, c.NoContent(http.StatusNoContent))

	h.errorHandler(c, errBackendDown)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, logs.All())
}

func TestEndToEnd_Diagnostics(t *testing.T) {
	api := newServer(t, brokenDao{})

	resp := api.GET("/diag/status").Expect().Status(http.StatusOK)
	resp.Header("x-instance-uuid").IsEqual("test-id")
	resp.JSON().Object().
		HasValue("status_code", int(status.OK)).
		HasValue("status_msg", "test")

	api.GET("/diag/health").
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		HasValue("status_msg", "test").
		ContainsKey("timestamp")

	api.GET("/diag/metrics").
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		ContainsKey("uptime").
		HasValue("errors", 0)

	api.GET("/abc").
		Expect().
		Status(http.StatusInternalServerError).
		JSON().Object().
		HasValue("error", "Internal Server Error")

	api.GET("/diag/metrics").
		Expect().
		JSON().Object().
		HasValue("errors", 1)
}
