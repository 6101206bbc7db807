// Package coach talks to the generative-AI service that writes plans,
// estimates food macros and scores recovery. Every response is validated
// before it is returned, so callers only ever see well-formed values.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonrepair"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable covers transport failures, non-2xx answers and local
	// rate limiting. Calls are never retried.
	ErrUnavailable = errors.New("coach unavailable")
	// ErrMalformedResponse is returned when a response cannot be repaired into
	// the expected shape.
	ErrMalformedResponse = errors.New("coach returned malformed response")
	// ErrInvalidRequest is returned for bad arguments before any call is made.
	ErrInvalidRequest = errors.New("invalid coach request")
)

const maxResponseBytes = 1 << 20

// Config controls the client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	FoodCacheSize int
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithLogger overrides the client logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	foods      *lru.Cache[string, MacroEstimate]
	logger     logrus.FieldLogger
}

// New constructs a client. A non-positive RatePerSecond disables limiting and
// a non-positive FoodCacheSize falls back to 256 entries.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("coach base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	size := cfg.FoodCacheSize
	if size <= 0 {
		size = 256
	}
	foods, err := lru.New[string, MacroEstimate](size)
	if err != nil {
		return nil, fmt.Errorf("food cache: %w", err)
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := max(cfg.Burst, 1)

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		foods:      foods,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GeneratePlan asks for a plan tailored to profile.
func (c *Client) GeneratePlan(ctx context.Context, profile Profile) (Plan, error) {
	if err := profile.Validate(); err != nil {
		return Plan{}, err
	}
	body, err := c.post(ctx, "plan", "/v1/plan", profile)
	if err != nil {
		return Plan{}, err
	}
	plan, err := decodePlan(body)
	if err != nil {
		recordCall("plan", "malformed")
		return Plan{}, err
	}
	recordCall("plan", "ok")
	return plan, nil
}

// AnalyzeFood estimates the macros of a free-text food description. Answers
// are cached per normalised description.
func (c *Client) AnalyzeFood(ctx context.Context, description string) (MacroEstimate, error) {
	key := strings.ToLower(strings.Join(strings.Fields(description), " "))
	if key == "" {
		return MacroEstimate{}, fmt.Errorf("%w: empty food description", ErrInvalidRequest)
	}
	if est, ok := c.foods.Get(key); ok {
		recordFoodCache(true)
		return est, nil
	}
	recordFoodCache(false)

	body, err := c.post(ctx, "food", "/v1/food", map[string]string{"description": description})
	if err != nil {
		return MacroEstimate{}, err
	}
	var raw rawMacroEstimate
	if err := json.Unmarshal(body, &raw); err != nil {
		recordCall("food", "malformed")
		return MacroEstimate{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	est, err := raw.estimate()
	if err != nil {
		recordCall("food", "malformed")
		return MacroEstimate{}, err
	}
	recordCall("food", "ok")
	c.foods.Add(key, est)
	return est, nil
}

// AnalyzeRecovery scores a night of sleep.
func (c *Client) AnalyzeRecovery(ctx context.Context, hours float64, quality, soreness string) (RecoveryAnalysis, error) {
	req := struct {
		Hours    float64 `json:"hours"`
		Quality  string  `json:"quality"`
		Soreness string  `json:"soreness"`
	}{hours, quality, soreness}

	body, err := c.post(ctx, "recovery", "/v1/recovery", req)
	if err != nil {
		return RecoveryAnalysis{}, err
	}
	var raw rawRecoveryAnalysis
	if err := json.Unmarshal(body, &raw); err != nil {
		recordCall("recovery", "malformed")
		return RecoveryAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	analysis, err := raw.analysis()
	if err != nil {
		recordCall("recovery", "malformed")
		return RecoveryAnalysis{}, err
	}
	recordCall("recovery", "ok")
	return analysis, nil
}

// post sends payload and returns a response body that is valid JSON. Only
// failures are counted here; callers record the final outcome.
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	if !c.limiter.Allow() {
		recordCall(op, "rate_limited")
		return nil, fmt.Errorf("%w: rate limit exceeded", ErrUnavailable)
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observeLatency(op, start)
	if err != nil {
		recordCall(op, "error")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		recordCall(op, "error")
		return nil, fmt.Errorf("%w: read %s response: %v", ErrUnavailable, op, err)
	}
	if resp.StatusCode >= 300 {
		recordCall(op, "error")
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, op, resp.StatusCode, bytes.TrimSpace(body))
	}

	body, err = c.repair(op, body)
	if err != nil {
		recordCall(op, "malformed")
		return nil, err
	}
	return body, nil
}

func (c *Client) repair(op string, body []byte) ([]byte, error) {
	if json.Valid(body) {
		return body, nil
	}
	fixed, err := jsonrepair.JSONRepair(string(body))
	if err != nil || !json.Valid([]byte(fixed)) {
		return nil, fmt.Errorf("%w: %s response is not JSON", ErrMalformedResponse, op)
	}
	c.logger.WithField("operation", op).Warn("repaired malformed collaborator response")
	recordRepair(op)
	return []byte(fixed), nil
}
