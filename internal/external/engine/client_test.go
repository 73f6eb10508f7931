package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnvalue/internal/valuation"
	"github.com/wonny/vnvalue/pkg/config"
	"github.com/wonny/vnvalue/pkg/httputil"
	"github.com/wonny/vnvalue/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	cfg := &config.Config{Env: "development"}
	return NewClient(httputil.New(cfg, logger.Nop()), logger.Nop(), server.URL+"/")
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestFetchAppData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/app-data/VNM", r.URL.Path)
		assert.Equal(t, "quarter", r.URL.Query().Get("period"))
		writeJSON(w, http.StatusOK, `{
			"success": true, "symbol": "VNM", "name": "Vinamilk",
			"sector": "Consumer Staples", "exchange": "HOSE",
			"current_price": 64500, "market_cap": 1.348e14,
			"pe_ratio": 15.2, "pb_ratio": null, "shares_outstanding": 2.09e9
		}`)
	})

	snap, err := c.FetchAppData(context.Background(), " vnm ", PeriodQuarter)
	require.NoError(t, err)

	assert.Equal(t, "VNM", snap.Symbol)
	assert.Equal(t, "Vinamilk", snap.Name)
	assert.Equal(t, 64500.0, snap.Price())
	require.NotNil(t, snap.PERatio)
	assert.Equal(t, 15.2, *snap.PERatio)
	assert.Nil(t, snap.PBRatio, "null stays absent")
	assert.Nil(t, snap.EBITDA, "missing key stays absent")
}

func TestFetchAppData_SuccessFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": false, "error": "symbol delisted"}`)
	})

	_, err := c.FetchAppData(context.Background(), "ABC", PeriodYear)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "symbol delisted", appErr.Message)
}

func TestFetchAppData_InvalidSymbol(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	for _, sym := range []string{"", "VN-M", "ABCDEFGHIJK", "../x"} {
		_, err := c.FetchAppData(context.Background(), sym, PeriodYear)
		assert.ErrorIs(t, err, ErrInvalidSymbol, sym)
	}
	assert.False(t, called)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"error":"unknown"}`, ErrNotFound},
		{"server error", http.StatusInternalServerError, `{"success":false,"error":"boom"}`, ErrServer},
		{"bad gateway no body", http.StatusBadGateway, ``, ErrServer},
		{"malformed", http.StatusOK, `{"success": tru`, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.FetchHistorical(context.Background(), "FPT")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchAppData(ctx, "VNM", PeriodYear)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(httputil.New(&config.Config{}, logger.Nop()), logger.Nop(), url)
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchHistorical(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/historical-chart-data/FPT", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"success": true, "symbol": "FPT", "data": {
			"years": ["2023 Q4", "2024 Q1"],
			"roe_data": [24.1, 25.3], "roa_data": [11.0, 11.4],
			"current_ratio_data": [1.3, 1.4], "quick_ratio_data": [1.1, 1.2],
			"cash_ratio_data": [0.4, 0.5]
		}}`)
	})

	series, err := c.FetchHistorical(context.Background(), "fpt")
	require.NoError(t, err)

	assert.Equal(t, 2, series.Len())
	assert.Equal(t, []float64{24.1, 25.3}, series.ROE)
	assert.Empty(t, series.PE)
}

func TestValuate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/valuation/VNM", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 10.5, body["wacc"])
		assert.Equal(t, 5.0, body["projectionYears"])
		assert.Equal(t, 40.0, body["payoutRatio"])
		weights, _ := body["modelWeights"].(map[string]interface{})
		assert.Equal(t, 25.0, weights["justified_pb"])

		writeJSON(w, http.StatusOK, `{
			"success": true, "symbol": "VNM",
			"valuations": {"fcfe": 0, "fcff": 110000, "justified_pe": 90000, "justified_pb": null, "weighted_average": 100000},
			"financial_data": {"eps": 4500, "shares_outstanding": 2.09e9},
			"market_comparison": {"current_price": 64500, "average_valuation": 100000, "upside_downside_pct": 55.0, "recommendation": "BUY"},
			"summary": {"models_used": 2, "total_models": 4}
		}`)
	})

	req := NewValuationRequest(valuation.DefaultAssumptions(), valuation.EqualWeights())
	res, err := c.Valuate(context.Background(), "VNM", req)
	require.NoError(t, err)

	assert.Nil(t, res.Results.FCFE, "engine 0 means not computed")
	assert.Nil(t, res.Results.JustifiedPB)
	require.NotNil(t, res.Results.FCFF)
	assert.Equal(t, 110000.0, *res.Results.FCFF)
	assert.Equal(t, "BUY", res.Recommendation())
	assert.Equal(t, 2, res.Summary.ModelsUsed)
	require.NotNil(t, res.FinancialData.SharesOutstanding)
}

func TestValuate_AppError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"success": false, "error": "no financials", "symbol": "XYZ"}`)
	})

	_, err := c.Valuate(context.Background(), "XYZ", ValuationRequest{})

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "no financials", appErr.Message)
	assert.ErrorIs(t, err, ErrServer)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status": "healthy", "vnstock_available": true}`)
	})

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy())
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodYear, p)

	p, err = ParsePeriod("Quarter")
	require.NoError(t, err)
	assert.Equal(t, PeriodQuarter, p)

	_, err = ParsePeriod("month")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestIsLocalURL(t *testing.T) {
	tests := map[string]bool{
		"http://localhost:5000":     true,
		"http://127.0.0.1:5000":     true,
		"http://[::1]:5000":         true,
		"https://engine.example.vn": false,
		"http://10.0.0.7:5000":      false,
		"://bad":                    false,
	}
	for raw, want := range tests {
		assert.Equal(t, want, IsLocalURL(raw), raw)
	}
}
