package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"blockwatch/internal/config"
	"blockwatch/internal/middlewares"
	"blockwatch/internal/mocks"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// TestContext drives a single handler call against mocked dependencies.
type TestContext struct {
	AppContext     *middlewares.AppContext
	Request        *http.Request
	Response       *httptest.ResponseRecorder
	MockController *gomock.Controller
	MockBlocker    *mocks.MockBlockManager
	MockStorage    *mocks.MockStorageProvider
	LogHandler     *TestLogHandler
}

// NewTestContext creates a complete test setup with a mocked block manager
// and store.
func NewTestContext(t *testing.T, method, url string) *TestContext {
	return NewTestContextWithBody(t, method, url, nil)
}

// NewTestContextWithBody is NewTestContext with body encoded as the JSON
// request body. A nil body sends none.
func NewTestContextWithBody(t *testing.T, method, url string, body any) *TestContext {
	t.Helper()

	cfg := &config.Config{}

	logHandler := NewTestLogHandler()
	logger := slog.New(logHandler)

	ctrl := gomock.NewController(t)
	mockBlocker := mocks.NewMockBlockManager(ctrl)
	mockStorage := mocks.NewMockStorageProvider(ctrl)

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err, "failed to encode request body")
			raw = string(encoded)
		}
		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()

	appCtx := &middlewares.AppContext{
		Context:  req.Context(),
		Config:   cfg,
		Logger:   logger,
		Blocker:  mockBlocker,
		Storage:  mockStorage,
		Request:  req,
		Response: rr,
	}

	return &TestContext{
		AppContext:     appCtx,
		Request:        req,
		Response:       rr,
		MockController: ctrl,
		MockBlocker:    mockBlocker,
		MockStorage:    mockStorage,
		LogHandler:     logHandler,
	}
}

func (tc *TestContext) AssertLogContains(t *testing.T, level slog.Level, message string) {
	t.Helper()
	assert.Truef(t, tc.LogHandler.ContainsMessage(level, message), "no %v log entry with message %q", level, message)
}

// CallHandler runs handler against the test request, as the router would.
func (tc *TestContext) CallHandler(handler middlewares.AppHandler) {
	tc.AppContext.Request = tc.Request
	tc.AppContext.Context = tc.Request.Context()
	handler(tc.AppContext)
}

func (tc *TestContext) AssertStatus(t *testing.T, expectedStatus int) {
	t.Helper()
	assert.Equalf(t, expectedStatus, tc.Response.Code, "unexpected status, body: %s", tc.Response.Body.String())
}

func (tc *TestContext) AssertContentType(t *testing.T, expectedType string) {
	t.Helper()
	assert.Equal(t, expectedType, tc.Response.Header().Get("Content-Type"))
}

// GetJSONResponse parses the response body as a JSON object.
func (tc *TestContext) GetJSONResponse(t *testing.T) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(tc.Response.Body.Bytes(), &response), "response is not a JSON object")
	return response
}

// AssertJSONField checks a top-level field of a JSON object response. JSON
// numbers decode as float64.
func (tc *TestContext) AssertJSONField(t *testing.T, field string, expected any) {
	t.Helper()
	response := tc.GetJSONResponse(t)
	if assert.Containsf(t, response, field, "field %s not found in response", field) {
		assert.Equal(t, expected, response[field], field)
	}
}

func (tc *TestContext) AssertJSONString(t *testing.T, field string, expected string) {
	t.Helper()
	response := tc.GetJSONResponse(t)
	actual, ok := response[field].(string)
	if assert.Truef(t, ok, "expected %s to be a string, got %T", field, response[field]) {
		assert.Equal(t, expected, actual, field)
	}
}

// WithBlocker replaces the mocked block manager, e.g. with a real blocker.Manager.
func (tc *TestContext) WithBlocker(b middlewares.BlockManager) *TestContext {
	tc.AppContext.Blocker = b
	return tc
}

// WithURLParam sets a chi route parameter, as the router would for "/{key}".
func (tc *TestContext) WithURLParam(key, value string) *TestContext {
	rctx := chi.RouteContext(tc.Request.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		tc.Request = tc.Request.WithContext(context.WithValue(tc.Request.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return tc
}

// DecodeJSON decodes the response body into v.
func (tc *TestContext) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(tc.Response.Body.Bytes(), v), "could not decode JSON response")
}

func (tc *TestContext) GetResponseBody() string {
	return tc.Response.Body.String()
}
