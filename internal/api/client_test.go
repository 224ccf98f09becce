package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionCookie = "session"

// fakeService mimics the analysis service: the login path sets a cookie that
// the upload and analyze paths require.
func fakeService(t *testing.T, analyze http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid username or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`{"message":"Logged in"}`))
	})
	mux.HandleFunc(UploadPath, func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(sessionCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"not logged in"}`))
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "trades.csv", header.Filename)
		assert.NotEmpty(t, data)
		_, _ = w.Write([]byte(`{"message":"File uploaded successfully"}`))
	})
	mux.HandleFunc(AnalyzePath, func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(sessionCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		analyze(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func okAnalysis(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{
		"tradePatterns": {
			"tradeData": [
				{"tradeId": 1, "symbol": "AAPL", "actions": "Buy -> Sell", "buyDate": "2024-01-02", "sellDate": "2024-01-07", "duration": 5, "profit": 120.5},
				{"tradeId": "2", "symbol": "TSLA", "actions": ["Buy", "Sell"], "buyDate": "2024-02-01", "sellDate": "2024-02-13", "duration": 12}
			],
			"clusters": {"duration": {"0": 30.5, "1": 4}}
		},
		"personalizedAdvice": "Hold **longer**."
	}`))
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, WithRateLimit(0))
}

func TestSessionCookieCarriesAcrossCalls(t *testing.T) {
	srv := fakeService(t, okAnalysis)
	c := newTestClient(srv)
	ctx := context.Background()

	require.NoError(t, c.Authenticate(ctx, "alice", "correct"))

	msg, err := c.Ingest(ctx, "trades.csv", []byte("id,symbol\n1,AAPL\n"))
	require.NoError(t, err)
	assert.Equal(t, "File uploaded successfully", msg)

	result, err := c.Analyze(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.TradePatterns)
	require.Len(t, result.TradePatterns.TradeData, 2)

	first := result.TradePatterns.TradeData[0]
	assert.Equal(t, "1", first.TradeID.String())
	assert.Equal(t, 5.0, first.DurationOrZero())
	require.NotNil(t, first.Profit)
	assert.Equal(t, "120.5", first.Profit.String())

	second := result.TradePatterns.TradeData[1]
	assert.Equal(t, "Buy, Sell", string(second.Actions))
	assert.Nil(t, second.Profit)
	assert.Equal(t, "Hold **longer**.", result.PersonalizedAdvice)
}

func TestAuthenticateSurfacesServiceMessage(t *testing.T) {
	srv := fakeService(t, okAnalysis)
	c := newTestClient(srv)

	err := c.Authenticate(context.Background(), "alice", "wrong")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid username or password", apiErr.ServiceMessage())
}

func TestUploadWithoutSessionIsRejected(t *testing.T) {
	srv := fakeService(t, okAnalysis)
	c := newTestClient(srv)

	_, err := c.Ingest(context.Background(), "trades.csv", []byte("x"))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not logged in", apiErr.Message)
}

func TestAnalyzeStructuredErrorPayload(t *testing.T) {
	srv := fakeService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"E_CLUSTER","rows":0}}`))
	})
	c := newTestClient(srv)
	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx, "alice", "correct"))

	_, err := c.Analyze(ctx)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
	assert.IsType(t, map[string]any{}, apiErr.Payload)
	assert.Equal(t, `{"error":{"code":"E_CLUSTER","rows":0}}`, Describe(apiErr.Payload))
}

func TestAnalyzeErrorObjectWithOKStatus(t *testing.T) {
	srv := fakeService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"No file uploaded"}`))
	})
	c := newTestClient(srv)
	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx, "alice", "correct"))

	_, err := c.Analyze(ctx)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "No file uploaded", apiErr.Message)
}

func TestAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := NewClient(srv.URL, WithRateLimit(0), WithTimeouts(time.Second, time.Second, 50*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx, "alice", "correct"))

	_, err := c.Analyze(ctx)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
	assert.Error(t, apiErr.Err)
}

func TestMessageOf(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    string
	}{
		{"nil", nil, ""},
		{"string", "  boom ", "boom"},
		{"message", map[string]any{"message": "bad file"}, "bad file"},
		{"nested", map[string]any{"error": map[string]any{"message": "nested"}}, "nested"},
		{"error string", map[string]any{"error": "flat"}, "flat"},
		{"detail", map[string]any{"detail": "fastapi style"}, "fastapi style"},
		{"unknown", map[string]any{"code": 3}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MessageOf(tc.payload))
		})
	}
}

func TestDecodePayloadPlainText(t *testing.T) {
	payload, msg := decodePayload([]byte("Bad Gateway"))
	assert.Equal(t, "Bad Gateway", payload)
	assert.Equal(t, "Bad Gateway", msg)

	payload, msg = decodePayload(nil)
	assert.Nil(t, payload)
	assert.Empty(t, msg)
}

func TestDecodePayloadTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxPlainMessage-1) + strings.Repeat("é", 10)
	_, msg := decodePayload([]byte(body))
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Equal(t, strings.Repeat("a", maxPlainMessage-1)+"...", msg)
}

func TestDefaultPaths(t *testing.T) {
	c := NewClient("http://localhost:8000")
	assert.Equal(t, "/auth/login", c.loginPath)
	assert.Equal(t, "/upload_trades", c.uploadPath)
	assert.Equal(t, "/analyze", c.analyzePath)
}

func TestWithPaths(t *testing.T) {
	var hits []string
	mux := http.NewServeMux()
	for _, path := range []string{"/v2/session", "/v2/files", "/analyze"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, WithRateLimit(0), WithPaths("/v2/session", "/v2/files", ""))
	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx, "alice", "secret"))
	msg, err := c.Ingest(ctx, "trades.csv", []byte("symbol\nAAPL\n"))
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)

	assert.Equal(t, []string{"/v2/session", "/v2/files"}, hits)
	assert.Equal(t, AnalyzePath, c.analyzePath)
}
