// Package api is the client of the remote trade-analysis service. All calls
// share one cookie jar, so the session cookie set by Authenticate is sent
// implicitly by Ingest and Analyze.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
)

const (
	LoginPath   = "/auth/login"
	UploadPath  = "/upload_trades"
	AnalyzePath = "/analyze"

	DefaultTimeout    = 30 * time.Second
	DefaultRateLimit  = 5 // requests per second
	defaultUploadNote = "File uploaded successfully"
)

// Client talks to the analysis service.
type Client struct {
	http           *resty.Client
	limiter        *rate.Limiter
	log            *logger.Logger
	loginTimeout   time.Duration
	uploadTimeout  time.Duration
	analyzeTimeout time.Duration
	loginPath      string
	uploadPath     string
	analyzePath    string
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(log *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = log.Component("api")
	}
}

// WithRateLimit sets the client-side pacing. Zero or negative disables it.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithTimeouts sets per-call deadlines. A zero value means no deadline.
func WithTimeouts(login, upload, analyze time.Duration) ClientOption {
	return func(c *Client) {
		c.loginTimeout = login
		c.uploadTimeout = upload
		c.analyzeTimeout = analyze
	}
}

// WithPaths overrides the endpoint paths. Empty values keep the defaults.
func WithPaths(login, upload, analyze string) ClientOption {
	return func(c *Client) {
		if login != "" {
			c.loginPath = login
		}
		if upload != "" {
			c.uploadPath = upload
		}
		if analyze != "" {
			c.analyzePath = analyze
		}
	}
}

// WithHTTPClient replaces the underlying transport client. The client's
// cookie jar is what carries the session.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		base := c.http.BaseURL
		c.http = resty.NewWithClient(hc).SetBaseURL(base)
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		http:           resty.New().SetBaseURL(baseURL),
		limiter:        rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		log:            logger.NewSilentLogger(),
		loginTimeout:   DefaultTimeout,
		uploadTimeout:  DefaultTimeout,
		analyzeTimeout: 0,
		loginPath:      LoginPath,
		uploadPath:     UploadPath,
		analyzePath:    AnalyzePath,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetHeader("Accept", "application/json")
	return c
}

// request prepares a paced, traced request bounded by timeout.
func (c *Client) request(ctx context.Context, timeout time.Duration) (*resty.Request, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	return req, cancel, nil
}

func (c *Client) fail(op string, resp *resty.Response, err error) *Error {
	if err != nil {
		c.log.Warn().Str("op", op).Err(err).Msg("request failed")
		return &Error{Op: op, Err: err}
	}
	payload, msg := decodePayload(resp.Body())
	c.log.Warn().Str("op", op).Int("status", resp.StatusCode()).Str("message", msg).Msg("service rejected request")
	return &Error{Op: op, StatusCode: resp.StatusCode(), Message: msg, Payload: payload}
}

// Authenticate establishes the session. The service answers with a session
// cookie that the jar keeps for subsequent calls.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	req, cancel, err := c.request(ctx, c.loginTimeout)
	if err != nil {
		return &Error{Op: "login", Err: err}
	}
	defer cancel()

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"username": username,
			"password": password,
		}).
		Post(c.loginPath)
	if err != nil || !resp.IsSuccess() {
		return c.fail("login", resp, err)
	}

	c.log.Debug().Str("user", username).Msg("authenticated")
	return nil
}

// Ingest uploads a trade file as multipart field "file" and returns the
// service's status message.
func (c *Client) Ingest(ctx context.Context, name string, data []byte) (string, error) {
	req, cancel, err := c.request(ctx, c.uploadTimeout)
	if err != nil {
		return "", &Error{Op: "upload", Err: err}
	}
	defer cancel()

	resp, err := req.
		SetFileReader("file", name, bytes.NewReader(data)).
		Post(c.uploadPath)
	if err != nil || !resp.IsSuccess() {
		return "", c.fail("upload", resp, err)
	}

	payload, msg := decodePayload(resp.Body())
	if msg == "" || payload == nil {
		msg = defaultUploadNote
	}
	c.log.Debug().Str("file", name).Int("bytes", len(data)).Msg("uploaded")
	return msg, nil
}

// Analyze asks the service to analyse the file already held for this
// session. It can take a long time; there is no progress channel.
func (c *Client) Analyze(ctx context.Context) (*models.AnalysisResult, error) {
	req, cancel, err := c.request(ctx, c.analyzeTimeout)
	if err != nil {
		return nil, &Error{Op: "analyze", Err: err}
	}
	defer cancel()

	start := time.Now()
	resp, err := req.Post(c.analyzePath)
	if err != nil || !resp.IsSuccess() {
		return nil, c.fail("analyze", resp, err)
	}

	body := resp.Body()
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &Error{Op: "analyze", StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode result: %w", err)}
	}
	// Some deployments answer 200 with an error object instead of a result.
	if _, hasErr := envelope["error"]; hasErr {
		if _, hasPatterns := envelope["tradePatterns"]; !hasPatterns {
			return nil, c.fail("analyze", resp, nil)
		}
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &Error{Op: "analyze", StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode result: %w", err)}
	}

	trades := 0
	if result.TradePatterns != nil {
		trades = len(result.TradePatterns.TradeData)
	}
	c.log.Info().Int("trades", trades).Dur("elapsed", time.Since(start)).Msg("analysis received")
	return &result, nil
}
