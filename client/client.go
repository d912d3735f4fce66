package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/apac/client/locale"
	"github.com/adamwoolhether/apac/client/parser"
	"github.com/adamwoolhether/apac/client/signer"
	"github.com/adamwoolhether/apac/client/throttle"
)

const (
	// Service is the fixed service name sent with every request.
	Service = "AWSECommerceService"
	// DefaultVersion is the API version used unless Config.Version is set.
	DefaultVersion = "2013-08-01"
	// DefaultBaseURI is the request path used unless Config.BaseURI is set.
	DefaultBaseURI = "/onca/xml"
)

// Fixed query keys merged into every request by GenerateParams.
const (
	KeyService        = "Service"
	KeyVersion        = "Version"
	KeyOperation      = "Operation"
	KeyAWSAccessKeyID = "AWSAccessKeyId"
	KeyAssociateTag   = "AssociateTag"
)

// Config holds the settings for an OperationHelper. AWSID, AWSSecret and
// AssocID are required.
type Config struct {
	AWSID     string `json:"awsId" validate:"required"`
	AWSSecret string `json:"awsSecret" validate:"required"`
	AssocID   string `json:"assocId" validate:"required"`

	// Endpoint overrides the host resolved from Locale.
	Endpoint string `json:"endPoint" validate:"omitempty,endpoint"`
	Locale   string `json:"locale"`
	BaseURI  string `json:"baseUri" validate:"omitempty,startswith=/"`
	Version  string `json:"version"`
	Parser   string `json:"parser" validate:"omitempty,oneof=xml-tree xml-to-json xml2js xml2json"`

	// MaxRequestsPerSecond of zero or less disables throttling.
	MaxRequestsPerSecond float64       `json:"maxRequestsPerSecond"`
	RequestTimeout       time.Duration `json:"requestTimeout" validate:"gte=0"`
}

// Response is the outcome of one executed operation.
type Response struct {
	Result     any
	RawBody    string
	StatusCode int
	URI        string
	RequestID  string
}

// Callback observes the outcome of Execute. It receives the same error,
// parsed result, and raw body that the returned value carries.
type Callback func(err error, result any, rawBody string)

// OperationHelper builds, signs, throttles, and executes operations
// against one endpoint. It is safe for concurrent use.
type OperationHelper struct {
	awsID     string
	assocID   string
	endpoint  string
	baseURI   string
	version   string
	scheme    string
	timeout   time.Duration
	strict    bool
	hc        *http.Client
	signer    *signer.Signer
	parser    parser.Parser
	throttler *throttle.Throttler[*Response]
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Build validates cfg and returns a ready OperationHelper. Every
// configuration failure is a *ConfigurationError and happens before any
// network activity.
func Build(cfg Config, optFns ...Option) (*OperationHelper, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("applying client option: %w", err)}
		}
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		host, err := locale.Endpoint(cfg.Locale)
		if err != nil {
			return nil, &ConfigurationError{Fields: map[string]string{"locale": err.Error()}, Err: err}
		}
		endpoint = host
	}

	h := &OperationHelper{
		awsID:    cfg.AWSID,
		assocID:  cfg.AssocID,
		endpoint: endpoint,
		baseURI:  cfg.BaseURI,
		version:  cfg.Version,
		scheme:   opts.scheme,
		timeout:  cfg.RequestTimeout,
		strict:   opts.strictStatus,
		logger:   opts.logger,
		tracer:   opts.tracer,
		parser:   opts.parser,
	}
	if h.baseURI == "" {
		h.baseURI = DefaultBaseURI
	}
	if h.version == "" {
		h.version = DefaultVersion
	}
	if h.scheme == "" {
		h.scheme = "http"
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	signerOpts := []signer.Option{signer.WithPath(h.baseURI)}
	if opts.now != nil {
		signerOpts = append(signerOpts, signer.WithClock(opts.now))
	}
	s, err := signer.New(cfg.AWSID, cfg.AWSSecret, endpoint, signerOpts...)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	h.signer = s

	if h.parser == nil {
		p, err := parser.New(cfg.Parser, opts.tree, opts.json)
		if err != nil {
			return nil, &ConfigurationError{Fields: map[string]string{"parser": err.Error()}, Err: err}
		}
		h.parser = p
	}

	h.hc = &http.Client{}
	if opts.client != nil {
		hc := *opts.client
		h.hc = &hc
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	h.hc.Transport = transport

	h.throttler = throttle.New[*Response](cfg.MaxRequestsPerSecond,
		throttle.WithLogger(func() *slog.Logger { return h.logger }),
		throttle.WithErrorMapper(h.classify),
	)

	return h, nil
}

// Endpoint returns the resolved endpoint host.
func (h *OperationHelper) Endpoint() string { return h.endpoint }

// Parser returns the configured response parser.
func (h *OperationHelper) Parser() parser.Parser { return h.parser }

// GenerateParams returns a copy of params with the fixed service identity
// fields set. Fixed fields always win over caller-supplied ones.
func (h *OperationHelper) GenerateParams(operation string, params signer.Params) signer.Params {
	out := params.Clone()
	out[KeyService] = Service
	out[KeyVersion] = h.version
	out[KeyOperation] = operation
	out[KeyAWSAccessKeyID] = h.awsID
	out[KeyAssociateTag] = h.assocID

	return out
}

// GenerateURI returns the signed request path and query for operation.
func (h *OperationHelper) GenerateURI(operation string, params signer.Params) (string, error) {
	signed, err := h.signer.Sign(h.GenerateParams(operation, params))
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}

	return h.baseURI + "?" + signer.Canonicalize(signed), nil
}

// Execute runs operation through the throttler and blocks until it
// completes. cb, if non-nil, is called once with the same outcome before
// Execute returns. A missing operation fails immediately with a
// *ConfigurationError and never reaches cb.
func (h *OperationHelper) Execute(ctx context.Context, operation string, params signer.Params, cb Callback) (*Response, error) {
	res, err := h.ExecuteAsync(ctx, operation, params, nil)
	if err != nil {
		return nil, err
	}

	resp, err := res.Value()
	notify(cb, resp, err)

	return resp, err
}

// ExecuteAsync queues operation and returns without waiting. cb, if non-nil,
// is called from another goroutine once the returned Result resolves, with
// the same error the Result reports.
func (h *OperationHelper) ExecuteAsync(ctx context.Context, operation string, params signer.Params, cb Callback) (*throttle.Result[*Response], error) {
	if operation == "" {
		return nil, &ConfigurationError{
			Fields: map[string]string{"operation": "This field is required"},
			Err:    ErrMissingOperation,
		}
	}

	params = params.Clone()
	res := h.throttler.Execute(ctx, func(ctx context.Context) (*Response, error) {
		return h.do(ctx, operation, params)
	})

	if cb != nil {
		go func() {
			resp, err := res.Value()
			notify(cb, resp, err)
		}()
	}

	return res, nil
}

// do performs one signed GET and parses the body.
func (h *OperationHelper) do(ctx context.Context, operation string, params signer.Params) (*Response, error) {
	resp := &Response{RequestID: uuid.NewString()}

	ctx, span := h.tracer.Start(ctx, "apac.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("request_id", resp.RequestID),
	)

	uri, err := h.GenerateURI(operation, params)
	if err != nil {
		return nil, err
	}
	resp.URI = uri

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	target := h.scheme + "://" + h.endpoint + uri
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{Op: "instantiating request", URI: target, Err: err}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	hr, err := h.hc.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return resp, &NetworkError{Op: "exec http do", URI: target, Err: err}
	}
	defer func() {
		if err := hr.Body.Close(); err != nil {
			h.logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(hr.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return resp, &NetworkError{Op: "reading body", URI: target, Err: err}
	}
	resp.StatusCode = hr.StatusCode
	resp.RawBody = string(body)
	span.SetAttributes(attribute.Int("status", hr.StatusCode))

	h.logger.Debug("apac request complete",
		"operation", operation,
		"request_id", resp.RequestID,
		"status", hr.StatusCode,
		"took", time.Since(start).String(),
	)

	if h.strict && (hr.StatusCode < 200 || hr.StatusCode > 299) {
		capped := body
		if len(capped) > maxErrBodySize {
			capped = capped[:maxErrBodySize]
		}

		statusErr := ErrUnexpectedStatusCode
		if hr.StatusCode == http.StatusUnauthorized || hr.StatusCode == http.StatusForbidden {
			statusErr = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
		}

		span.SetStatus(codes.Error, statusErr.Error())
		return resp, &UnexpectedStatusError{
			StatusCode: hr.StatusCode,
			Body:       string(capped),
			Err:        statusErr,
		}
	}

	result, err := h.parser.Parse(body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return resp, &ParseError{RawBody: resp.RawBody, Err: err}
	}
	resp.Result = result

	return resp, nil
}

// classify reports errors raised while an action was still queued as
// network aborts, matching errors raised by the request itself.
func (h *OperationHelper) classify(err error) error {
	if errors.Is(err, throttle.ErrContextEnded) || errors.Is(err, throttle.ErrWaitingFailed) {
		return &NetworkError{Op: "waiting for dispatch", URI: h.endpoint, Err: err}
	}

	return err
}

func notify(cb Callback, resp *Response, err error) {
	if cb == nil {
		return
	}

	var (
		result any
		raw    string
	)
	if resp != nil {
		result = resp.Result
		raw = resp.RawBody
	}

	cb(err, result, raw)
}
