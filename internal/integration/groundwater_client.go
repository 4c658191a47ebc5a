// Package integration handles external service interactions
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abelzeko/dwlr-dashboard/internal/config"
	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	// maxBodyBytes caps how much of a response is read
	maxBodyBytes = 8 << 20
	// maxErrorBody caps how much of an error body ends up in a StatusError
	maxErrorBody = 256
)

// ErrStationIDRequired is returned by per-station operations called with an empty id
var ErrStationIDRequired = errors.New("station id is required")

// GroundwaterClient performs one HTTP round trip per backend resource and
// validates every decoded payload before handing it out
type GroundwaterClient struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *zap.SugaredLogger
}

// Option customises a GroundwaterClient
type Option func(*GroundwaterClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *GroundwaterClient) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *GroundwaterClient) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *GroundwaterClient) {
		c.logger = logger
	}
}

// NewGroundwaterClient creates a client for the analytics backend at baseURL
func NewGroundwaterClient(baseURL string, opts ...Option) *GroundwaterClient {
	if baseURL == "" {
		baseURL = config.DefaultBackendURL
	}
	c := &GroundwaterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		validate:   newValidator(),
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend origin the client talks to
func (c *GroundwaterClient) BaseURL() string {
	return c.baseURL
}

// Stations lists the monitoring stations with their latest reading
func (c *GroundwaterClient) Stations(ctx context.Context) ([]entities.Station, error) {
	return getList[entities.Station](ctx, c, "list stations", "/api/groundwater")
}

// Summary fetches the aggregate KPIs
func (c *GroundwaterClient) Summary(ctx context.Context) (*entities.Summary, error) {
	var summary entities.Summary
	if err := c.getObject(ctx, "summary", "/api/summary", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Alerts lists stations currently in an alert state
func (c *GroundwaterClient) Alerts(ctx context.Context) ([]entities.Alert, error) {
	return getList[entities.Alert](ctx, c, "alerts", "/api/alerts")
}

// History fetches the recent readings of a station, oldest first
func (c *GroundwaterClient) History(ctx context.Context, stationID string) ([]entities.HistoryPoint, error) {
	if stationID == "" {
		return nil, fmt.Errorf("history: %w", ErrStationIDRequired)
	}
	return getList[entities.HistoryPoint](ctx, c, "history", "/api/history/"+url.PathEscape(stationID))
}

// Forecast fetches the projected readings of a station
func (c *GroundwaterClient) Forecast(ctx context.Context, stationID string) ([]entities.ForecastPoint, error) {
	if stationID == "" {
		return nil, fmt.Errorf("forecast: %w", ErrStationIDRequired)
	}
	return getList[entities.ForecastPoint](ctx, c, "forecast", "/api/forecast/"+url.PathEscape(stationID))
}

// Availability fetches the recharge/demand balance of a station
func (c *GroundwaterClient) Availability(ctx context.Context, stationID string) (*entities.Availability, error) {
	if stationID == "" {
		return nil, fmt.Errorf("availability: %w", ErrStationIDRequired)
	}
	var availability entities.Availability
	if err := c.getObject(ctx, "availability", "/api/availability/"+url.PathEscape(stationID), &availability); err != nil {
		return nil, err
	}
	return &availability, nil
}

// Scenario posts a what-if projection request
func (c *GroundwaterClient) Scenario(ctx context.Context, req entities.ScenarioRequest) (*entities.ScenarioResult, error) {
	const op = "scenario"
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: invalid request: %w", op, err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
	}

	data, err := c.do(ctx, op, http.MethodPost, "/api/scenario", payload)
	if err != nil {
		return nil, err
	}
	var result entities.ScenarioResult
	if err := c.decodeObject(op, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Zones lists the zone classification of every station
func (c *GroundwaterClient) Zones(ctx context.Context) ([]entities.ZoneClassification, error) {
	return getList[entities.ZoneClassification](ctx, c, "zones", "/api/zones")
}

// getList fetches a JSON array and validates every element
func getList[T any](ctx context.Context, c *GroundwaterClient, op, path string) ([]T, error) {
	data, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if items == nil {
		// null is treated as an empty list
		items = []T{}
	}
	for i := range items {
		if err := c.validate.Struct(items[i]); err != nil {
			return nil, &DecodeError{Op: op, Err: fmt.Errorf("item %d: %w", i, err)}
		}
	}

	c.logger.Debugw("Decoded list", "op", op, "count", len(items))
	return items, nil
}

func (c *GroundwaterClient) getObject(ctx context.Context, op, path string, out any) error {
	data, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.decodeObject(op, data, out)
}

func (c *GroundwaterClient) decodeObject(op string, data []byte, out any) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return &DecodeError{Op: op, Err: errors.New("expected an object, got null")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	if err := c.validate.Struct(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// do performs the round trip and returns the raw body of a 2xx response
// that is not an error envelope
func (c *GroundwaterClient) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debugw("Request failed", "op", op, "path", path, "error", err)
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	c.logger.Debugw("Received response", "op", op, "method", method, "path", path,
		"status", res.StatusCode, "bytes", len(data), "duration", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Op:         op,
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}

	if msg, ok := errorEnvelope(data); ok {
		return nil, &APIError{Op: op, Message: msg}
	}
	return data, nil
}

// errorEnvelope detects the backend's {"error": "..."} reply
func errorEnvelope(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var envelope struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Error == nil {
		return "", false
	}
	return *envelope.Error, true
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names in validation errors
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		point := sl.Current().Interface().(entities.HistoryPoint)
		if point.Timestamp.IsZero() {
			sl.ReportError(point.Timestamp, "timestamp", "Timestamp", "required", "")
		}
	}, entities.HistoryPoint{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		point := sl.Current().Interface().(entities.ForecastPoint)
		if point.Date.IsZero() {
			sl.ReportError(point.Date, "date", "Date", "required", "")
		}
	}, entities.ForecastPoint{})

	return v
}
