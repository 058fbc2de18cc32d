package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmylchreest/pianola/pkg/httpclient"
)

// AuthTokenHeader carries the catalog API token.
const AuthTokenHeader = "x-auth-token"

// maxLessonResponseSize bounds catalog responses after decompression.
const maxLessonResponseSize = 8 << 20

// ClientConfig configures a remote catalog Client.
type ClientConfig struct {
	BaseURL                 string
	AuthToken               string
	Timeout                 time.Duration
	RetryAttempts           int
	RetryDelay              time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	Logger                  *slog.Logger
	// HTTPClient overrides the underlying transport client.
	HTTPClient *http.Client
}

// Client reads lessons from the catalog REST API.
type Client struct {
	baseURL   string
	authToken string
	http      *httpclient.Client
	logger    *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid catalog base URL %q", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "catalog_client")

	httpCfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		httpCfg.Timeout = cfg.Timeout
	}
	httpCfg.RetryAttempts = cfg.RetryAttempts
	if cfg.RetryDelay > 0 {
		httpCfg.RetryDelay = cfg.RetryDelay
	}
	httpCfg.CircuitThreshold = cfg.CircuitBreakerThreshold
	httpCfg.CircuitTimeout = cfg.CircuitBreakerTimeout
	httpCfg.RetryPolicy = RetryPolicy
	httpCfg.AcceptableStatusCodes = httpclient.MustParseStatusCodes("200-299,404")
	httpCfg.MaxResponseSize = maxLessonResponseSize
	httpCfg.BaseClient = cfg.HTTPClient
	httpCfg.Logger = logger

	return &Client{
		baseURL:   base,
		authToken: cfg.AuthToken,
		http:      httpclient.New(httpCfg),
		logger:    logger,
	}, nil
}

// RetryPolicy retries a forbidden response once and otherwise follows
// httpclient.DefaultRetryPolicy. Not-found is never retried.
func RetryPolicy(attempt int, resp *http.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusForbidden {
		return attempt < 1
	}
	return httpclient.DefaultRetryPolicy(attempt, resp, err)
}

// GetLesson implements LessonSource.
func (c *Client) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrLessonNotFound
	}

	var lesson Lesson
	if err := c.getJSON(ctx, "/lessons/"+url.PathEscape(id), &lesson); err != nil {
		return nil, err
	}
	if lesson.ID == "" {
		lesson.ID = id
	}
	return &lesson, nil
}

// ListCourseLessons implements LessonSource.
func (c *Client) ListCourseLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	var lessons []Lesson
	if err := c.getJSON(ctx, "/lessons/course/"+url.PathEscape(courseID), &lessons); err != nil {
		if errors.Is(err, ErrLessonNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sortLessons(lessons)
	return lessons, nil
}

// CircuitState returns the state of the client's circuit breaker.
func (c *Client) CircuitState() httpclient.CircuitState {
	return c.http.CircuitState()
}

// CircuitStats returns the counters of the client's circuit breaker.
func (c *Client) CircuitStats() httpclient.CircuitBreakerStats {
	return c.http.CircuitStats()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set(AuthTokenHeader, c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
			return ErrForbidden
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrLessonNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: unexpected status %d from %s", ErrUnavailable, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding catalog response: %w", err)
	}

	c.logger.Debug("catalog request completed",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
