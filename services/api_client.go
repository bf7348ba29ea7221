package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/metrics"
	"github.com/scoutme/client/internal/types"
)

const (
	// RequestIDHeader carries a fresh uuid on every request.
	RequestIDHeader = "X-Request-Id"

	maxErrorBody = 1 << 20
)

// TokenSource yields the bearer token to attach, or "" for none.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// ErrorListener is told about every failed call before the error is
// returned to the caller. Listeners must not block.
type ErrorListener func(ctx context.Context, err *APIError)

// Options configures an ApiClient.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Headers are sent on every request, on top of the JSON defaults.
	Headers map[string]string
	// Debug logs every request and response.
	Debug   bool
	Tokens  TokenSource
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// TracerProvider defaults to the global one.
	TracerProvider trace.TracerProvider
	// HTTPClient overrides the default client; Timeout is then ignored.
	HTTPClient *http.Client
}

// ApiClient is the single configured HTTP client of the application.
// Outgoing requests get the default headers, a request id and the bearer
// token; failed responses are classified into *APIError, logged and handed
// to the registered listeners, then returned unchanged.
type ApiClient struct {
	BaseURL string

	httpClient *http.Client
	headers    http.Header
	tokens     TokenSource
	debug      bool
	logger     *slog.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer

	mu        sync.RWMutex
	listeners []ErrorListener
}

func NewApiClient(opts Options) *ApiClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	return &ApiClient{
		BaseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		headers:    headers,
		tokens:     tokens,
		debug:      opts.Debug,
		logger:     logger.With("component", "api"),
		metrics:    opts.Metrics,
		tracer:     tp.Tracer("github.com/scoutme/client/services"),
	}
}

// OnError registers a listener for failed calls.
func (c *ApiClient) OnError(l ErrorListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Get decodes the JSON response of GET endpoint into out (which may be nil).
func (c *ApiClient) Get(ctx context.Context, endpoint string, out any) error {
	return c.CallAPI(ctx, http.MethodGet, endpoint, nil, out)
}

// Post sends in as JSON and decodes the response into out.
func (c *ApiClient) Post(ctx context.Context, endpoint string, in, out any) error {
	return c.CallAPI(ctx, http.MethodPost, endpoint, in, out)
}

// Put sends in as JSON and decodes the response into out.
func (c *ApiClient) Put(ctx context.Context, endpoint string, in, out any) error {
	return c.CallAPI(ctx, http.MethodPut, endpoint, in, out)
}

// Delete decodes the response of DELETE endpoint into out.
func (c *ApiClient) Delete(ctx context.Context, endpoint string, out any) error {
	return c.CallAPI(ctx, http.MethodDelete, endpoint, nil, out)
}

// CallAPI performs one request. A non-2xx response, a transport failure or a
// request that cannot be built yields an *APIError.
func (c *ApiClient) CallAPI(ctx context.Context, method, endpoint string, in, out any) error {
	url := c.BaseURL + endpoint

	ctx, span := c.tracer.Start(ctx, "api "+method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
		))
	defer span.End()

	req, hasToken, err := c.prepareRequest(ctx, method, url, in)
	if err != nil {
		apiErr := &APIError{
			Kind:   KindRequestConfiguration,
			Method: method,
			URL:    url,
			err: oops.In("http").Code("REQUEST_CONFIGURATION").
				With("method", method, "url", url).
				Wrapf(err, "failed to prepare request"),
		}
		return c.fail(ctx, span, apiErr)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := &APIError{
			Kind:          KindNetworkUnreachable,
			Method:        method,
			URL:           url,
			Authenticated: hasToken,
			err: oops.In("http").Code("NETWORK_UNREACHABLE").
				With("method", method, "url", url).
				Wrapf(err, "no response from server"),
		}
		return c.fail(ctx, span, apiErr)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(ctx, span, c.statusError(req, resp, hasToken))
	}

	if c.debug {
		c.logger.DebugContext(ctx, "api response", "status", resp.StatusCode, "method", method, "url", url)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.metrics.APIRequest(method, "ok")
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failBody(ctx, span, method, url, "read_failed",
			oops.In("http").Code("READ_FAILED").With("url", url).Wrapf(err, "failed to read response body"))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.metrics.APIRequest(method, "ok")
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.failBody(ctx, span, method, url, "decode_failed",
			oops.In("http").Code("DECODE_FAILED").With("url", url).Wrapf(err, "failed to parse response JSON"))
	}
	c.metrics.APIRequest(method, "ok")
	return nil
}

// failBody handles a 2xx whose body could not be used. It is not an
// *APIError, so listeners are not told.
func (c *ApiClient) failBody(ctx context.Context, span trace.Span, method, url, outcome string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	c.metrics.APIRequest(method, outcome)
	c.logger.ErrorContext(ctx, "unusable response body", "method", method, "url", url, "error", err)
	return err
}

// prepareRequest builds the request and runs the outgoing stage.
func (c *ApiClient) prepareRequest(ctx context.Context, method, url string, in any) (*http.Request, bool, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())

	token := c.tokens.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.debug {
		c.logger.DebugContext(ctx, "api request", "method", method, "url", url, "has_token", token != "")
	}
	return req, token != "", nil
}

func (c *ApiClient) statusError(req *http.Request, resp *http.Response, hasToken bool) *APIError {
	kind := KindForStatus(resp.StatusCode)

	var errBody types.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &errBody)

	apiErr := &APIError{
		Kind:          kind,
		Status:        resp.StatusCode,
		Method:        req.Method,
		URL:           req.URL.String(),
		Message:       errBody.Message,
		Authenticated: hasToken,
	}
	if kind == KindValidationFailed {
		apiErr.FieldErrors = errBody.Errors
		if apiErr.FieldErrors == nil {
			apiErr.FieldErrors = map[string][]string{}
		}
	}
	apiErr.err = oops.In("http").Code(strings.ToUpper(string(kind))).
		With("method", req.Method, "url", apiErr.URL, "status", resp.StatusCode).
		Public(errBody.Message).
		Errorf("api call failed with status: %s", resp.Status)
	return apiErr
}

// fail is the incoming error stage: log by kind, notify listeners, return.
func (c *ApiClient) fail(ctx context.Context, span trace.Span, apiErr *APIError) error {
	span.RecordError(apiErr)
	span.SetStatus(codes.Error, string(apiErr.Kind))
	c.metrics.APIRequest(apiErr.Method, string(apiErr.Kind))

	attrs := []any{"method", apiErr.Method, "url", apiErr.URL, "status", apiErr.Status}
	if c.debug && apiErr.Message != "" {
		attrs = append(attrs, "message", apiErr.Message)
	}

	switch apiErr.Kind {
	case KindAuthenticationExpired:
		c.logger.WarnContext(ctx, "token invalid or expired", attrs...)
	case KindForbidden:
		c.logger.ErrorContext(ctx, "access forbidden", attrs...)
	case KindNotFound:
		c.logger.ErrorContext(ctx, "resource not found", attrs...)
	case KindValidationFailed:
		c.logger.WarnContext(ctx, "validation failed", append(attrs, "fields", apiErr.Fields())...)
	case KindServerError:
		c.logger.ErrorContext(ctx, "server error, try again later", attrs...)
	case KindNetworkUnreachable:
		c.logger.ErrorContext(ctx, "no response from server (timeout or network)", append(attrs, "error", errors.Unwrap(apiErr))...)
	case KindRequestConfiguration:
		c.logger.ErrorContext(ctx, "failed to configure request", append(attrs, "error", errors.Unwrap(apiErr))...)
	default:
		c.logger.ErrorContext(ctx, "api error", attrs...)
	}

	c.mu.RLock()
	listeners := append([]ErrorListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, apiErr)
	}
	return apiErr
}
