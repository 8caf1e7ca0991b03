package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos-backend/internal/apperr"
	"pos-backend/internal/dashboard"
	"pos-backend/internal/database/dbtest"
	"pos-backend/internal/enrichment"
	"pos-backend/internal/models"
	"pos-backend/internal/orders"
	"pos-backend/internal/stats"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	d := NewDeps(dbtest.Open(t), enrichment.NewClient(enrichment.Options{}))
	d.UploadsDir = t.TempDir()
	return NewApp(d)
}

func call(t *testing.T, app *fiber.App, method, path string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type created struct {
	Status   string `json:"status"`
	ID       uint   `json:"id"`
	Replayed bool   `json:"replayed"`
}

var colaProduct = map[string]any{
	"name":       "Cola",
	"price":      "3.00",
	"cost_price": "1.50",
	"barcodes":   []string{"111", "222"},
}

var colaOrder = map[string]any{
	"total_amount": "6.00",
	"total_items":  2,
	"items": []map[string]any{
		{"barcode": "111", "name": "Cola", "price": "3.00", "quantity": 2},
	},
}

func TestCheckoutFlow(t *testing.T) {
	app := newTestApp(t)

	resp, data := call(t, app, http.MethodPost, "/api/products", colaProduct)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	product := decode[created](t, data)
	assert.Equal(t, "success", product.Status)

	resp, data = call(t, app, http.MethodGet, "/api/products/222", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resolved := decode[map[string]any](t, data)
	assert.Equal(t, "Cola", resolved["name"])
	assert.Equal(t, "222", resolved["barcode"])

	resp, data = call(t, app, http.MethodPost, "/api/orders", colaOrder)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	order := decode[created](t, data)

	resp, data = call(t, app, http.MethodGet, "/api/stats/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	dash := decode[dashboard.Data](t, data)
	assert.EqualValues(t, 1, dash.Today.OrderCount)
	assert.True(t, dash.Today.Revenue.Equal(decimal.NewFromInt(6)))
	assert.True(t, dash.Today.Cost.Equal(decimal.NewFromInt(3)))
	assert.True(t, dash.Today.Profit.Equal(decimal.NewFromInt(3)))
	require.Len(t, dash.TopProducts, 1)
	assert.Equal(t, product.ID, dash.TopProducts[0].ProductID)
	assert.EqualValues(t, 2, dash.TopProducts[0].TotalSold)

	resp, data = call(t, app, http.MethodGet, fmt.Sprintf("/api/products/by-id/%d/stats", product.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	ps := decode[stats.ProductStats](t, data)
	assert.EqualValues(t, 2, ps.TotalSales)
	assert.EqualValues(t, 2, ps.TodaySales)

	// Deleting the product removes every barcode but keeps the sale history.
	resp, _ = call(t, app, http.MethodDelete, "/api/products/222", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = call(t, app, http.MethodGet, "/api/products/111", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decode[apperr.ErrorResponse](t, data).Error)

	resp, data = call(t, app, http.MethodGet, fmt.Sprintf("/api/orders/%d/items", order.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]models.OrderLineItem](t, data)
	require.Len(t, items, 1)
	assert.Equal(t, "111", items[0].BarcodeToken)
	assert.Equal(t, 2, items[0].Quantity)

	resp, data = call(t, app, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]orders.OrderResponse](t, data), 1)
}

func TestErrorStatusMapping(t *testing.T) {
	app := newTestApp(t)
	resp, _ := call(t, app, http.MethodPost, "/api/products", colaProduct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/api/products", map[string]any{
		"name": "Other", "price": "1", "barcodes": []string{"222"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data := call(t, app, http.MethodPost, "/api/products", map[string]any{"name": "", "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[apperr.ErrorResponse](t, data)
	assert.Contains(t, body.Details, "name")
	assert.Contains(t, body.Details, "price")

	resp, _ = call(t, app, http.MethodPost, "/api/orders", map[string]any{
		"total_amount": "9.99",
		"total_items":  1,
		"items":        []map[string]any{{"barcode": "111", "name": "Cola", "price": "3", "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/orders/abc/items", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/products/by-id/9999/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/stats/top-products?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/stats/today?valuation=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodDelete, "/api/products/404", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "deleting an absent product is a no-op")

	resp, _ = call(t, app, http.MethodPut, "/api/products/111,222", map[string]any{"name": "Cola", "price": "3"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "comma-joined keys are rejected")
}

func TestOrderIdempotencyHeader(t *testing.T) {
	app := newTestApp(t)

	resp, data := call(t, app, http.MethodPost, "/api/orders", colaOrder, orders.IdempotencyKeyHeader, "till-7")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	first := decode[created](t, data)

	resp, data = call(t, app, http.MethodPost, "/api/orders", colaOrder, orders.IdempotencyKeyHeader, "till-7")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	second := decode[created](t, data)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)
}

func TestTodayStatsEmptyIsZero(t *testing.T) {
	app := newTestApp(t)
	for _, valuation := range []string{"current", "snapshot"} {
		resp, data := call(t, app, http.MethodGet, "/api/stats/today?valuation="+valuation, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		s := decode[map[string]any](t, data)
		for _, field := range []string{"order_count", "revenue", "cost", "profit"} {
			assert.NotNil(t, s[field], "%s.%s", valuation, field)
		}
	}
}

func TestHealthAndRequestID(t *testing.T) {
	app := newTestApp(t)
	resp, data := call(t, app, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestLookupDisabledReturnsEmptySuggestion(t *testing.T) {
	app := newTestApp(t)
	resp, data := call(t, app, http.MethodGet, "/api/lookup/111", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[enrichment.Suggestion](t, data)
	assert.False(t, s.Found)
	assert.Equal(t, "111", s.Barcode)
}

func TestAuditLogsEndpoint(t *testing.T) {
	app := newTestApp(t)
	resp, _ := call(t, app, http.MethodPost, "/api/products", colaProduct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data := call(t, app, http.MethodGet, "/api/audit-logs?entity_type=product", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[[]map[string]any](t, data)
	require.Len(t, logs, 1)
	assert.Equal(t, "create", logs[0]["action"])
}
