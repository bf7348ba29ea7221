package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/metrics"
)

type captured struct {
	header http.Header
	method string
	path   string
}

func newTestServer(t *testing.T, status int, body string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.header = r.Header.Clone()
			got.method = r.Method
			got.path = r.URL.Path
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallAPI_OutgoingStage(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		wantAuth  string
		wantToken bool
	}{
		{"with token", "abc", "Bearer abc", true},
		{"without token", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got captured
			srv := newTestServer(t, http.StatusOK, `{}`, &got)
			c := NewApiClient(Options{
				BaseURL: srv.URL + "/api/",
				Timeout: time.Second,
				Headers: map[string]string{"X-Client": "scoutme"},
				Tokens:  TokenFunc(func() string { return tt.token }),
			})

			require.NoError(t, c.Get(context.Background(), "/me", nil))

			assert.Equal(t, "/api/me", got.path)
			assert.Equal(t, tt.wantAuth, got.header.Get("Authorization"))
			assert.Equal(t, "application/json", got.header.Get("Content-Type"))
			assert.Equal(t, "application/json", got.header.Get("Accept"))
			assert.Equal(t, "scoutme", got.header.Get("X-Client"))
			assert.NotEmpty(t, got.header.Get(RequestIDHeader))
		})
	}
}

func TestCallAPI_DecodesSuccess(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[{"id":1},{"id":2}]`, nil)
	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second})

	var out []struct {
		ID int `json:"id"`
	}
	require.NoError(t, c.Get(context.Background(), "/annonces", &out))
	assert.Len(t, out, 2)
}

func TestCallAPI_EmptySuccessBody(t *testing.T) {
	srv := newTestServer(t, http.StatusNoContent, ``, nil)
	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second})

	var out map[string]any
	assert.NoError(t, c.Post(context.Background(), "/logout", nil, &out))
}

func TestCallAPI_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `not json`, nil)
	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second})

	var out map[string]any
	err := c.Get(context.Background(), "/me", &out)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "decode failures are not transport errors")
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "DECODE_FAILED", oopsErr.Code())
}

func TestCallAPI_InvalidJSONIsNotCountedOK(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `not json`, nil)
	m := metrics.New()
	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second, Metrics: m})

	var out map[string]any
	require.Error(t, c.Get(context.Background(), "/me", &out))
	require.NoError(t, c.Get(context.Background(), "/me", nil))

	assert.Equal(t, map[string]float64{"decode_failed": 1, "ok": 1}, outcomes(t, m))
}

// outcomes sums scoutme_api_requests_total by its outcome label.
func outcomes(t *testing.T, m *metrics.Collector) map[string]float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "scoutme_api_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" {
					got[l.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return got
}

func TestCallAPI_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		kind     ErrorKind
		sentinel error
		message  string
	}{
		{http.StatusUnauthorized, `{"message":"Unauthenticated."}`, KindAuthenticationExpired, ErrAuthenticationExpired, "Unauthenticated."},
		{http.StatusForbidden, `{"message":"Forbidden"}`, KindForbidden, ErrForbidden, "Forbidden"},
		{http.StatusNotFound, `{}`, KindNotFound, ErrNotFound, ""},
		{http.StatusUnprocessableEntity, `{"message":"invalid","errors":{"email":["invalid"]}}`, KindValidationFailed, ErrValidationFailed, "invalid"},
		{http.StatusInternalServerError, `oops`, KindServerError, ErrServerError, ""},
		{http.StatusBadGateway, ``, KindServerError, ErrServerError, ""},
		{http.StatusServiceUnavailable, ``, KindServerError, ErrServerError, ""},
		{http.StatusGatewayTimeout, ``, KindServerError, ErrServerError, ""},
		{http.StatusTeapot, ``, KindUnexpectedStatus, ErrUnexpectedStatus, ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second})

			var notified *APIError
			c.OnError(func(_ context.Context, err *APIError) { notified = err })

			err := c.Post(context.Background(), "/login", map[string]string{"email": "x"}, nil)
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Same(t, apiErr, notified, "listener sees the returned error")
			if tt.kind == KindValidationFailed {
				assert.Equal(t, map[string][]string{"email": {"invalid"}}, apiErr.FieldErrors)
			}
		})
	}
}

func TestCallAPI_PublicMessage(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, `{"message":"Identifiants incorrects"}`, nil)
	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second})

	err := c.Post(context.Background(), "/login", nil, nil)
	assert.Equal(t, "Identifiants incorrects", oops.GetPublic(err, "fallback"))
}

func TestCallAPI_NetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewApiClient(Options{BaseURL: url, Timeout: time.Second, Tokens: TokenFunc(func() string { return "t" })})
	err := c.Get(context.Background(), "/me", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindNetworkUnreachable, apiErr.Kind)
	assert.Zero(t, apiErr.Status)
	assert.True(t, apiErr.Authenticated)
}

func TestCallAPI_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := c.Get(context.Background(), "/me", nil)
	assert.ErrorIs(t, err, ErrNetworkUnreachable)
}

func TestCallAPI_RequestConfiguration(t *testing.T) {
	c := NewApiClient(Options{BaseURL: "http://localhost", Timeout: time.Second})

	t.Run("unmarshalable body", func(t *testing.T) {
		err := c.Post(context.Background(), "/login", map[string]any{"bad": make(chan int)}, nil)
		assert.ErrorIs(t, err, ErrRequestConfiguration)
	})

	t.Run("invalid url", func(t *testing.T) {
		err := c.Get(context.Background(), "/bad url\x7f", nil)
		assert.ErrorIs(t, err, ErrRequestConfiguration)
	})
}

func TestCallAPI_Metrics(t *testing.T) {
	srv := newTestServer(t, http.StatusForbidden, `{}`, nil)
	m := metrics.New()
	c := NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second, Metrics: m})

	_ = c.Get(context.Background(), "/me", nil)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "scoutme_api_requests_total", families[0].GetName())
}

func TestCallAPI_TraceIDsInLogs(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, `{}`, nil)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var buf bytes.Buffer
	c := NewApiClient(Options{
		BaseURL:        srv.URL,
		Timeout:        time.Second,
		Logger:         logging.Setup("scoutme", "test", "json", false, &buf),
		TracerProvider: tp,
	})

	require.ErrorIs(t, c.Get(context.Background(), "/me", nil), ErrServerError)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "api GET /me", spans[0].Name())

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, spans[0].SpanContext().SpanID().String(), record["span_id"])
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Kind: KindValidationFailed, Status: 422, Method: "POST", URL: "http://x/login", Message: "invalid"}
	assert.Equal(t, "POST http://x/login: 422 validation_failed: invalid", err.Error())
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestAPIError_Fields(t *testing.T) {
	err := &APIError{FieldErrors: map[string][]string{"password": nil, "email": nil}}
	assert.Equal(t, []string{"email", "password"}, err.Fields())
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuthenticationExpired, KindForStatus(401))
	assert.Equal(t, KindServerError, KindForStatus(599))
	assert.Equal(t, KindUnexpectedStatus, KindForStatus(400))
}
