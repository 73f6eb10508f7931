package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/vnvalue/internal/valuation"
	"github.com/wonny/vnvalue/pkg/httputil"
	"github.com/wonny/vnvalue/pkg/logger"
)

// Client talks to the valuation engine (market data + model math)
// ⭐ SSOT: engine HTTP calls happen only in this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new engine client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the configured engine address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAppData loads the company snapshot for symbol
func (c *Client) FetchAppData(ctx context.Context, symbol string, period Period) (*CompanySnapshot, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodYear
	}

	params := url.Values{}
	params.Set("period", string(period))

	var resp appDataResponse
	if err := c.getJSON(ctx, "/api/app-data/"+url.PathEscape(sym), params, &resp); err != nil {
		return nil, fmt.Errorf("app-data %s: %w", sym, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("app-data %s: %w", sym, &AppError{StatusCode: http.StatusOK, Message: resp.Error})
	}

	snap := resp.CompanySnapshot
	if snap.Symbol == "" {
		snap.Symbol = sym
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": sym,
		"period": period,
	}).Debug("Fetched app data")

	return &snap, nil
}

// FetchHistorical loads the historical ratio series for symbol
func (c *Client) FetchHistorical(ctx context.Context, symbol string) (*HistoricalSeries, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var resp historicalResponse
	if err := c.getJSON(ctx, "/api/historical-chart-data/"+url.PathEscape(sym), nil, &resp); err != nil {
		return nil, fmt.Errorf("historical %s: %w", sym, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("historical %s: %w", sym, &AppError{StatusCode: http.StatusOK, Message: resp.Error})
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":  sym,
		"periods": resp.Data.Len(),
	}).Debug("Fetched historical series")

	return &resp.Data, nil
}

// Valuate asks the engine to compute the four models
func (c *Client) Valuate(ctx context.Context, symbol string, req ValuationRequest) (*ValuationResult, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/api/valuation/"+url.PathEscape(sym), req)
	if err != nil {
		return nil, fmt.Errorf("valuation %s: %w", sym, classifyTransport(ctx, err))
	}
	defer httpResp.Body.Close()

	var resp valuationResponse
	if err := decodeResponse(httpResp, &resp); err != nil {
		return nil, fmt.Errorf("valuation %s: %w", sym, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("valuation %s: %w", sym, &AppError{StatusCode: httpResp.StatusCode, Message: resp.Error})
	}

	result := &ValuationResult{
		Symbol: sym,
		Results: valuation.ModelResults{
			FCFE:        present(resp.Valuations.FCFE),
			FCFF:        present(resp.Valuations.FCFF),
			JustifiedPE: present(resp.Valuations.JustifiedPE),
			JustifiedPB: present(resp.Valuations.JustifiedPB),
		},
		EngineWeightedAverage: present(resp.Valuations.WeightedAverage),
		FinancialData:         resp.FinancialData,
		MarketComparison:      resp.MarketComparison,
		Summary:               resp.Summary,
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":   sym,
		"missing":  len(result.Results.Missing()),
		"duration": time.Since(start).String(),
	}).Info("Valuation computed")

	return result, nil
}

// Health checks the engine's /health endpoint
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "/health", nil, &status); err != nil {
		return HealthStatus{}, fmt.Errorf("health: %w", err)
	}
	return status, nil
}

// getJSON performs a GET and decodes a JSON body into out
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse maps error statuses to typed errors and decodes 2xx bodies
func decodeResponse(resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		appErr := &AppError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil {
			appErr.Message = payload.Error
		}
		return appErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// present maps the engine's 0-for-failure convention to absent
func present(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}

// IsLocalURL reports whether raw points at this machine
func IsLocalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
