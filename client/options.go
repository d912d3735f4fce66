package client

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/apac/client/parser"
)

// Option is a functional option for configuring an [OperationHelper] via [Build].
type Option func(*options) error
type options struct {
	client       *http.Client
	rt           http.RoundTripper
	userAgent    string
	scheme       string
	logger       *slog.Logger
	tracer       trace.Tracer
	parser       parser.Parser
	tree         parser.TreeOptions
	json         parser.JSONOptions
	now          func() time.Time
	strictStatus bool
}

// WithClient replaces the default [http.Client] used for requests.
// Its Timeout is left untouched; use Config.RequestTimeout instead.
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.userAgent = header
		return nil
	}
}

// WithScheme sets the URL scheme used to reach the endpoint. Defaults to "http".
func WithScheme(scheme string) Option {
	return func(o *options) error {
		if scheme != "http" && scheme != "https" {
			return errors.New("scheme must be http or https")
		}
		o.scheme = scheme
		return nil
	}
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used to open a span per executed operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithParser replaces the backend selected by Config.Parser.
func WithParser(p parser.Parser) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("parser must not be nil")
		}
		o.parser = p
		return nil
	}
}

// WithTreeOptions configures the xml-tree parser backend.
func WithTreeOptions(opts parser.TreeOptions) Option {
	return func(o *options) error {
		o.tree = opts
		return nil
	}
}

// WithJSONOptions configures the xml-to-json parser backend.
func WithJSONOptions(opts parser.JSONOptions) Option {
	return func(o *options) error {
		o.json = opts
		return nil
	}
}

// WithClock overrides the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		o.now = now
		return nil
	}
}

// WithStrictStatus makes a non-2xx response fail with an
// [UnexpectedStatusError] instead of being parsed.
func WithStrictStatus() Option {
	return func(o *options) error {
		o.strictStatus = true
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}
