package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader correlates a client request with server logs.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the current bearer token; an empty token sends none.
type TokenSource interface {
	Token() string
}

// RoundTripFunc adapts a function to http.RoundTripper.
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// AuthTransport attaches the bearer token to outgoing requests.
type AuthTransport struct {
	Base   http.RoundTripper
	Source TokenSource
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source != nil {
		if token := t.Source.Token(); token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return base(t.Base).RoundTrip(req)
}

// RequestIDTransport stamps each request with a fresh X-Request-ID unless the
// caller already set one.
type RequestIDTransport struct {
	Base http.RoundTripper
}

func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return base(t.Base).RoundTrip(req)
}

// RateLimitTransport waits for a token from Limiter before each request. The
// wait honours the request context, so a deadline also bounds queueing.
type RateLimitTransport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
}

func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return base(t.Base).RoundTrip(req)
}

// LoggingTransport logs each request at debug level and failures at warn.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *zap.Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := base(t.Base).RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.String("request_id", req.Header.Get(RequestIDHeader)),
		zap.Duration("elapsed", time.Since(start)),
	}
	switch {
	case err != nil:
		t.Logger.Warn("request error", append(fields, zap.Error(err))...)
	case resp.StatusCode >= http.StatusBadRequest:
		t.Logger.Warn("request rejected", append(fields, zap.Int("status", resp.StatusCode))...)
	default:
		t.Logger.Debug("request ok", append(fields, zap.Int("status", resp.StatusCode))...)
	}
	return resp, err
}

// TransportOptions configures NewTransport.
type TransportOptions struct {
	Base      http.RoundTripper
	Tokens    TokenSource
	RateLimit float64 // requests per second, 0 disables limiting
	RateBurst int
	Logger    *zap.Logger
}

// NewTransport chains request id, auth, rate limiting and logging around the
// base transport, outermost first.
func NewTransport(opts TransportOptions) http.RoundTripper {
	var rt http.RoundTripper = base(opts.Base)
	if opts.Logger != nil {
		rt = &LoggingTransport{Base: rt, Logger: opts.Logger}
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		rt = &RateLimitTransport{Base: rt, Limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), burst)}
	}
	rt = &AuthTransport{Base: rt, Source: opts.Tokens}
	return &RequestIDTransport{Base: rt}
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
