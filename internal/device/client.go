// Package device talks to the HTTP backend that owns the serial connection.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/eltechnic0/arduino-control/internal/command"
	"github.com/eltechnic0/arduino-control/internal/config"
)

// ErrUnavailable is returned while the breaker is open and calls fail fast.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// Client issues commands to the serial backend.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

// NewClient creates a backend client from the device configuration.
func NewClient(cfg config.DeviceConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "device").Logger(),
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerState returns the current breaker state for monitoring.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

// IsConnected asks whether the backend holds an open serial connection.
func (c *Client) IsConnected(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/isConnected", "", nil)
	if err != nil {
		return false, err
	}
	return parseConnected(body)
}

// Connect opens the serial connection and returns the backend status text.
func (c *Client) Connect(ctx context.Context) (string, error) {
	return c.text(ctx, "/connect")
}

// Reconnect closes and reopens the serial connection.
func (c *Client) Reconnect(ctx context.Context) (string, error) {
	return c.text(ctx, "/reconnect")
}

// Disconnect closes the serial connection.
func (c *Client) Disconnect(ctx context.Context) (string, error) {
	return c.text(ctx, "/disconnect")
}

// Comtest runs the communication test against the board.
func (c *Client) Comtest(ctx context.Context) (Result, error) {
	return c.result(ctx, http.MethodGet, command.ComtestCmd.Endpoint(), "", nil)
}

// VSet sets output levels.
func (c *Client) VSet(ctx context.Context, req command.VSet) (Result, error) {
	return c.postJSON(ctx, command.VSetCmd.Endpoint(), req)
}

// VRead reads input levels.
func (c *Client) VRead(ctx context.Context, req command.VRead) (Result, error) {
	return c.postJSON(ctx, command.VReadCmd.Endpoint(), req)
}

// Verbose toggles verbose serial output. The backend reads a form field.
func (c *Client) Verbose(ctx context.Context, on bool) (Result, error) {
	form := url.Values{"value": {strconv.FormatBool(on)}}
	return c.result(ctx, http.MethodPost, command.VerboseCmd.Endpoint(),
		"application/x-www-form-urlencoded", []byte(form.Encode()))
}

// Script submits a script for the backend runner. The text is sent as is.
func (c *Client) Script(ctx context.Context, raw json.RawMessage) (Result, error) {
	return c.result(ctx, http.MethodPost, command.ScriptCmd.Endpoint(), "application/json", raw)
}

// CalibrationPage fetches the calibration add-on HTML fragment.
func (c *Client) CalibrationPage(ctx context.Context) (string, error) {
	return c.text(ctx, "/calibration/index")
}

func (c *Client) postJSON(ctx context.Context, path string, v interface{}) (Result, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.result(ctx, http.MethodPost, path, "application/json", payload)
}

func (c *Client) result(ctx context.Context, method, path, contentType string, payload []byte) (Result, error) {
	body, err := c.do(ctx, method, path, contentType, payload)
	if err != nil {
		return Result{}, err
	}
	return DecodeResult(body), nil
}

func (c *Client) text(ctx context.Context, path string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(body))
	var quoted string
	if strings.HasPrefix(s, `"`) && json.Unmarshal([]byte(s), &quoted) == nil {
		s = quoted
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, path, contentType, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %w", method, path, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}
	return body, nil
}
