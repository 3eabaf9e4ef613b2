package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second
	// HeaderRequestID carries the per-request id.
	HeaderRequestID = "X-Request-ID"

	maxBodyBytes = 8 << 20
)

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLimiter paces outgoing requests. A nil limiter disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// Client talks JSON to one base URL. Answers may be wrapped in the
// {"code","success","message","data"} envelope, which is unwrapped.
//
//	Docs: docs/authclient.md
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	log     logr.Logger
}

// New creates a Client for baseURL (for example http://host/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
		log:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewLimiter returns the limiter cfg describes, or nil when pacing is off.
func NewLimiter(cfg portalAuth.EndpointsConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Token  string
	Body   any
}

// APIError is a non-success answer. It unwraps to the portalAuth sentinel
// matching its classification.
type APIError struct {
	Status  int
	Code    int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.Status, msg)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// UserMessage returns the message the server wrote for the user, if any.
func (e *APIError) UserMessage() string {
	return e.Message
}

type envelope struct {
	Code    *int            `json:"code"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

// Do performs req and decodes the (unwrapped) answer into out, which may
// be nil. Every failure wraps one of portalAuth's sentinels: 401 answers
// wrap ErrUnauthorized, transport errors and 5xx wrap ErrNetworkFailure and
// undecodable bodies wrap ErrMalformedResponse.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ctx, requestID := portalAuth.EnsureRequestID(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", portalAuth.ErrNetworkFailure, err)
		}
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := c.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.V(1).Info("request failed", "method", method, "path", req.Path, "request_id", requestID, "error", err.Error())
		return fmt.Errorf("%w: %v", portalAuth.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", portalAuth.ErrNetworkFailure, err)
	}
	c.log.V(2).Info("request done", "method", method, "path", req.Path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	return decodeAnswer(resp.StatusCode, raw, out)
}

func decodeAnswer(status int, raw []byte, out any) error {
	var env envelope
	wrapped := false
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &env) == nil &&
		(env.Code != nil || env.Success != nil) {
		wrapped = true
	}

	if status >= 300 {
		return statusError(status, 0, messageOf(env))
	}
	if wrapped {
		code := 0
		if env.Code != nil {
			code = *env.Code
		}
		failed := (env.Success != nil && !*env.Success) || code >= 300
		if failed {
			s := code
			if s < 300 {
				s = http.StatusBadRequest
			}
			return statusError(s, code, env.Message)
		}
		raw = env.Data
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: empty body", portalAuth.ErrMalformedResponse)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", portalAuth.ErrMalformedResponse, err)
	}
	return nil
}

func statusError(status, code int, message string) *APIError {
	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = portalAuth.ErrUnauthorized
	case status >= 500:
		kind = portalAuth.ErrNetworkFailure
	default:
		kind = errRejected
	}
	return &APIError{Status: status, Code: code, Message: message, kind: kind}
}

// errRejected classifies 4xx answers other than 401. Callers that know the
// endpoint re-classify it.
var errRejected = errors.New("request rejected")

func messageOf(env envelope) string {
	if env.Message != "" {
		return env.Message
	}
	var detail string
	if len(env.Detail) > 0 && json.Unmarshal(env.Detail, &detail) == nil {
		return detail
	}
	return ""
}

// IsRejected reports whether err is a 4xx answer other than 401.
func IsRejected(err error) bool {
	return errors.Is(err, errRejected)
}
