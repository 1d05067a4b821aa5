package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ericfialkowski/urlshort/shortener"
	"github.com/ericfialkowski/urlshort/status"
	"github.com/ericfialkowski/urlshort/telemetry"
	"github.com/labstack/echo/v5"
	"go.uber.org/zap"
)

const (
	AppPath     = "/:abv"
	TokenHeader = "token"

	statusSuccess = "success"
	statusError   = "error"
	startKey      = "request_start"
)

type (
	Handlers struct {
		service     *shortener.Service
		status      *status.Status
		id          string
		otel        *telemetry.Metrics
		counters    counters
		logger      *zap.Logger
		logRequests bool
	}

	counters struct {
		started   time.Time
		created   atomic.Int64
		redirects atomic.Int64
		stats     atomic.Int64
		errors    atomic.Int64
	}

	metrics struct {
		Uptime    string `json:"uptime"`
		Created   int64  `json:"created"`
		Redirects int64  `json:"redirects"`
		Stats     int64  `json:"stats"`
		Errors    int64  `json:"errors"`
	}

	submission struct {
		Url string `json:"url"`
		Id  string `json:"id"`
	}

	urlReturn struct {
		Status string `json:"status"`
		Url    string `json:"url"`
		Id     string `json:"id"`
	}

	statsReturn struct {
		Status string `json:"status"`
		Visits int64  `json:"visits"`
		Url    string `json:"url"`
		Id     string `json:"id"`
	}

	errorReturn struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}

	// badRequest is a gateway-level input error, answered with 400.
	badRequest struct {
		msg string
	}
)

func (e badRequest) Error() string {
	return e.msg
}

// CreateHandlers wires the gateway. otel may be nil when metric export is disabled.
func CreateHandlers(svc *shortener.Service, s *status.Status, id string, otel *telemetry.Metrics,
	logger *zap.Logger, logRequests bool) *Handlers {
	h := &Handlers{
		service:     svc,
		status:      s,
		id:          id,
		otel:        otel,
		logger:      logger,
		logRequests: logRequests,
	}
	h.counters.started = time.Now()
	return h
}

func (h *Handlers) SetUp(e *echo.Echo) {
	e.Use(h.idHeader(), h.timing())

	e.GET("/diag/status", h.status.BackgroundHandler)
	e.GET("/diag/health", h.status.Handler)
	e.GET("/diag/metrics", h.metricsHandler)

	e.POST("/", h.addHandler)
	e.POST(AppPath, h.addHandler)
	e.GET("/", h.getHandler)
	e.GET(AppPath, h.getHandler)
	e.Any("/", h.methodHandler)
	e.Any(AppPath, h.methodHandler)
	e.RouteNotFound("/*", h.unmatchedHandler)

	e.HTTPErrorHandler = h.errorHandler
}

func (h *Handlers) addHandler(c *echo.Context) error {
	body, err := parseSubmission(c.Request())
	if err != nil {
		return h.fail(c, err)
	}

	rec, err := h.service.Submit(c.Request().Context(), c.Request().Header.Get(TokenHeader), body.Url, body.Id)
	if err != nil {
		return h.fail(c, err)
	}

	h.counters.created.Add(1)
	h.otel.AddRecordCreated(c.Request().Context())
	return h.reply(c, http.StatusOK, urlReturn{Status: statusSuccess, Url: rec.Url, Id: rec.Id})
}

func (h *Handlers) getHandler(c *echo.Context) error {
	res, err := h.service.Retrieve(c.Request().Context(), c.Request().URL.Path)
	if err != nil {
		return h.fail(c, err)
	}

	if res.Stats {
		h.counters.stats.Add(1)
		h.otel.AddStatsRequest(c.Request().Context())
		return h.reply(c, http.StatusOK, statsReturn{
			Status: statusSuccess,
			Visits: res.Record.Visits,
			Url:    res.Record.Url,
			Id:     res.Record.Id,
		})
	}

	h.counters.redirects.Add(1)
	h.otel.AddRedirect(c.Request().Context())
	h.logRequest(c, http.StatusFound, nil)
	return c.Redirect(http.StatusFound, res.Record.Url)
}

func (h *Handlers) methodHandler(c *echo.Context) error {
	return h.fail(c, badRequest{msg: fmt.Sprintf("invalid HTTP method: %s", c.Request().Method)})
}

// unmatchedHandler serves paths no route claims, such as "/a/b". Submissions ignore the path
// and lookups report the id as unknown, so every reply keeps the error envelope.
func (h *Handlers) unmatchedHandler(c *echo.Context) error {
	switch c.Request().Method {
	case http.MethodPost:
		return h.addHandler(c)
	case http.MethodGet:
		return h.getHandler(c)
	default:
		return h.methodHandler(c)
	}
}

// errorHandler renders errors that escape a handler in the same envelope as handled ones.
func (h *Handlers) errorHandler(c *echo.Context, err error) {
	if r, _ := echo.UnwrapResponse(c.Response()); r != nil && r.Committed {
		return
	}
	if code := echo.StatusCode(err); code > 0 && code < http.StatusInternalServerError {
		err = badRequest{msg: http.StatusText(code)}
	}
	_ = h.fail(c, err)
}

func (h *Handlers) metricsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, metrics{
		Uptime:    time.Since(h.counters.started).Round(time.Second).String(),
		Created:   h.counters.created.Load(),
		Redirects: h.counters.redirects.Load(),
		Stats:     h.counters.stats.Load(),
		Errors:    h.counters.errors.Load(),
	})
}

// parseSubmission accepts JSON and form bodies. An empty body yields empty fields so the
// service can report which one is missing.
func parseSubmission(r *http.Request) (submission, error) {
	var body submission

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(echo.HeaderContentType))
	switch mediaType {
	case echo.MIMEApplicationForm, echo.MIMEMultipartForm:
		body.Url = r.FormValue("url")
		body.Id = r.FormValue("id")
		return body, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return submission{}, badRequest{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	return body, nil
}

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.Is(err, shortener.ErrAccessDenied):
		return http.StatusForbidden
	case errors.As(err, &br):
		return http.StatusBadRequest
	case shortener.IsBackendFault(err):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (h *Handlers) reply(c *echo.Context, code int, body any) error {
	h.logRequest(c, code, nil)
	return c.JSON(code, body)
}

func (h *Handlers) fail(c *echo.Context, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = http.StatusText(code)
	}

	h.counters.errors.Add(1)
	h.otel.AddRequestError(c.Request().Context(), code)
	h.logRequest(c, code, err)
	return c.JSON(code, errorReturn{Status: statusError, Error: msg})
}

func (h *Handlers) logRequest(c *echo.Context, code int, err error) {
	r := c.Request()
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.RequestURI()),
		zap.Int("status", code),
	}
	if start, ok := c.Get(startKey).(time.Time); ok {
		fields = append(fields, zap.Duration("duration", time.Since(start)))
	}

	switch {
	case err == nil:
		if h.logRequests {
			h.logger.Info("request", fields...)
		}
	case code >= http.StatusInternalServerError:
		h.logger.Error("request failed", append(fields, zap.Error(err))...)
	default:
		h.logger.Warn("request rejected", append(fields, zap.Error(err))...)
	}
}

func (h *Handlers) idHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			c.Response().Header().Set("x-instance-uuid", h.id)
			return next(c)
		}
	}
}

func (h *Handlers) timing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			c.Set(startKey, start)
			err := next(c)
			h.otel.RecordDuration(c.Request().Context(), c.Request().Method, time.Since(start))
			return err
		}
	}
}
