package status

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"
)

type (
	Code int

	SimpleStatus struct {
		Code      Code   `json:"status_code"`
		Message   string `json:"status_msg"`
		Timestamp string `json:"timestamp"`
	}

	// Status is a SimpleStatus that a background checker can update while handlers read it.
	Status struct {
		mu      sync.RWMutex
		current SimpleStatus
	}
)

const (
	OK Code = iota
	Warning
	Critical
	Unknown
)

func NewStatus() *Status {
	s := &Status{}
	s.Unknown("initializing")
	return s
}

func (s *Status) newStatus(code Code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = SimpleStatus{Code: code, Message: message, Timestamp: currentTimestamp()}
}

// Snapshot returns the status as last set.
func (s *Status) Snapshot() SimpleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Current returns the status stamped with the current time.
func (s *Status) Current() SimpleStatus {
	c := s.Snapshot()
	c.Timestamp = currentTimestamp()
	return c
}

func currentTimestamp() string {
	return time.Now().Format(time.DateTime)
}

func (s *Status) Ok(message string) {
	s.newStatus(OK, message)
}

func (s *Status) Warn(message string) {
	s.newStatus(Warning, message)
}

func (s *Status) Critical(message string) {
	s.newStatus(Critical, message)
}

func (s *Status) Unknown(message string) {
	s.newStatus(Unknown, message)
}

/*
Handler is used for a slowly changing status where we want to automatically update the timestamp to the current request time
*/
func (s *Status) Handler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.Current())
}

/*
BackgroundHandler is used when there will be a background process that updates the status and we want to see the timestamp
of when the background task ran last
*/
func (s *Status) BackgroundHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Watch runs check every interval until ctx is done, reporting Ok or Warn with the matching
// message. The first check runs immediately.
func (s *Status) Watch(ctx context.Context, interval time.Duration, check func() bool, okMsg, warnMsg string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if check() {
			s.Ok(okMsg)
		} else {
			s.Warn(warnMsg)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
