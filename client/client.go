package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const tokenHeader = "token"

// Client talks to a urlshort server.
type Client struct {
	inner *resty.Client
	token string
}

type Option func(*Client)

type (
	// Link is a stored short id and the url it points to.
	Link struct {
		Status string `json:"status"`
		Url    string `json:"url"`
		Id     string `json:"id"`
	}

	Stats struct {
		Status string `json:"status"`
		Visits int64  `json:"visits"`
		Url    string `json:"url"`
		Id     string `json:"id"`
	}

	submission struct {
		Url string `json:"url"`
		Id  string `json:"id,omitempty"`
	}
)

// APIError is a failure reported by the server in its error envelope.
type APIError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected response: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// New creates a client with the given options. Redirects are never followed so Expand can
// read the target from the Location header.
func New(options ...Option) *Client {
	client := &Client{
		inner: resty.New().SetBaseURL("http://localhost:3000"),
	}

	client.inner.SetRedirectPolicy(
		resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}),
	)

	for _, opt := range options {
		opt(client)
	}

	return client
}

func WithServerAddress(addr string) Option {
	return func(client *Client) {
		client.inner.SetBaseURL(strings.TrimSuffix(addr, "/"))
	}
}

// WithToken sets the shared secret sent with submissions.
func WithToken(token string) Option {
	return func(client *Client) {
		client.token = token
	}
}

// Shorten stores target under id, or under a server generated id when id is empty.
func (c *Client) Shorten(target, id string) (Link, error) {
	const op = "shorten URL"

	var link Link
	apiErr := &APIError{}
	response, err := c.inner.R().
		SetHeader(tokenHeader, c.token).
		SetBody(submission{Url: target, Id: id}).
		SetResult(&link).
		SetError(apiErr).
		Post("/")
	if err != nil {
		return Link{}, fmt.Errorf("%s: %w", op, err)
	}

	if response.StatusCode() != http.StatusOK {
		apiErr.StatusCode = response.StatusCode()
		return Link{}, fmt.Errorf("%s: %w", op, apiErr)
	}
	return link, nil
}

// Stats returns the visit count for id without counting a visit.
func (c *Client) Stats(id string) (Stats, error) {
	const op = "get stats"

	var stats Stats
	apiErr := &APIError{}
	response, err := c.inner.R().
		SetResult(&stats).
		SetError(apiErr).
		Get("/" + url.PathEscape(id) + "+")
	if err != nil {
		return Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	if response.StatusCode() != http.StatusOK {
		apiErr.StatusCode = response.StatusCode()
		return Stats{}, fmt.Errorf("%s: %w", op, apiErr)
	}
	return stats, nil
}

// Expand returns the url stored under id. The server counts this as a visit.
func (c *Client) Expand(id string) (string, error) {
	const op = "expand URL"

	apiErr := &APIError{}
	response, err := c.inner.R().
		SetError(apiErr).
		Get("/" + url.PathEscape(id))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if response.StatusCode() != http.StatusFound {
		apiErr.StatusCode = response.StatusCode()
		return "", fmt.Errorf("%s: %w", op, apiErr)
	}
	return response.Header().Get("Location"), nil
}
