package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/pkg/circuitbreaker"
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// HTTPConfig configures the remote content API provider.
type HTTPConfig struct {
	// BaseURL of the content API, e.g. https://content.example.com/api/v1
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	Client  *http.Client
	Retrier *retry.Retrier
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// apiResponse is the content API envelope.
type apiResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// APIError is an error response of the content API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("content api: status %d", e.Status)
	}
	return fmt.Sprintf("content api: status %d: %s", e.Status, e.Message)
}

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("content api: rate limited, retry after %s", e.RetryAfter)
}

// RetryDelay keeps the circuit breaker open for at least Retry-After.
func (e *RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// HTTPProvider reads the catalog from the remote content API.
type HTTPProvider struct {
	cfg     HTTPConfig
	client  *http.Client
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

var _ domain.Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates the provider.
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog: base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	log := cfg.Logger.With(logger.Component("catalog_http"))

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	retrier := cfg.Retrier
	if retrier == nil {
		retrier = retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(200*time.Millisecond),
			retry.WithMaxDelay(5*time.Second),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Warn("content api retry", logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
			}),
		)
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuitbreaker.ContentAPIBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		})
	}

	return &HTTPProvider{
		cfg:     cfg,
		client:  client,
		retrier: retrier,
		breaker: breaker,
		logger:  log,
	}, nil
}

// GetLessons implements domain.Provider.
func (p *HTTPProvider) GetLessons(ctx context.Context) ([]domain.Lesson, error) {
	var resp apiResponse[[]domain.Lesson]
	if err := p.get(ctx, "/lessons", &resp); err != nil {
		return nil, fmt.Errorf("get lessons: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("get lessons: %s", resp.Error)
	}
	return resp.Data, nil
}

// GetActivities implements domain.Provider.
func (p *HTTPProvider) GetActivities(ctx context.Context) ([]domain.Activity, error) {
	var resp apiResponse[[]domain.Activity]
	if err := p.get(ctx, "/activities", &resp); err != nil {
		return nil, fmt.Errorf("get activities: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("get activities: %s", resp.Error)
	}
	return resp.Data, nil
}

// BreakerState reports the circuit breaker state.
func (p *HTTPProvider) BreakerState() circuitbreaker.State {
	return p.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// get runs one logical request: the breaker guards the whole retry loop.
func (p *HTTPProvider) get(ctx context.Context, path string, result interface{}) error {
	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.retrier.Do(ctx, func(ctx context.Context) error {
			return p.doSingleRequest(ctx, path, result)
		})
	})
}

func (p *HTTPProvider) doSingleRequest(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	p.logger.Debug("content api request", logger.String("path", path))

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return retry.Retryable(&RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))})
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		if resp.StatusCode >= 500 {
			return retry.Retryable(apiErr)
		}
		return retry.Permanent(apiErr)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 60 * time.Second
}
