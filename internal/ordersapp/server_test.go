package ordersapp

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/orderprep/internal/app"
	"github.com/phillip-england/orderprep/internal/export"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/logging"
	"github.com/phillip-england/orderprep/internal/render"
	"github.com/phillip-england/orderprep/internal/shop"
)

const upstreamOrders = `{"data": {"orders": {"edges": [
	{"node": {"id": "gid://shopify/Order/7", "displayFulfillmentStatus": "UNFULFILLED", "note": "ring twice", "email": "ada@example.com",
		"tags": ["Boulder Home Delivery"],
		"shippingAddress": {"firstName": "Ada", "lastName": "Lovelace", "name": "Ada Lovelace", "address1": "1 Main St", "city": "Boulder", "zip": "80302", "phone": "555-0100"}}}
]}}}`

const upstreamItems = `{"data": {"order": {"lineItems": {"edges": [
	{"node": {"name": "Polenta - Frozen Pint", "title": "Polenta", "variantTitle": "Frozen Pint", "quantity": 2, "fulfillableQuantity": 2, "nonFulfillableQuantity": 0}}
]}}}}`

func newTestServer(t *testing.T) *server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(upstreamOrders)) })
	mux.HandleFunc("/api/order/", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(upstreamItems)) })
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	outputDir := t.TempDir()
	renderer, err := render.New(render.Options{OutputDir: outputDir, PDFCPUBin: "orderprep-missing-pdfcpu", Scale: 1})
	require.NoError(t, err)

	return &server{
		state:         app.New(app.Options{ExtrasName: "extras extras"}),
		fetcher:       shop.NewClient(upstream.URL, upstream.Client(), nil),
		renderer:      renderer,
		locations:     location.DefaultTable,
		deliveryState: "CO",
		outputDir:     outputDir,
		log:           logging.Nop(),
		baseCtx:       context.Background(),
	}
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t).handler()
	rec := do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = do(t, h, http.MethodPost, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefreshTotalsAndExports(t *testing.T) {
	s := newTestServer(t)
	h := s.handler()

	rec := do(t, h, http.MethodPut, "/api/orders", []byte(`[]`))
	assert.Equal(t, http.StatusConflict, rec.Code, "edits need a fetched session")

	rec = do(t, h, http.MethodPost, "/api/refresh?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st app.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Orders)
	assert.Equal(t, 1, st.Done)

	rec = do(t, h, http.MethodGet, "/api/totals", nil)
	assert.JSONEq(t, `{"items": [{"title": "Polenta", "variants": [{"variantTitle": "Frozen Pint", "quantity": 2}]}], "totalItems": 2}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/location-totals", nil)
	assert.Contains(t, rec.Body.String(), `"location":"Boulder Home Delivery"`)

	rec = do(t, h, http.MethodGet, "/api/location-orders", nil)
	assert.Contains(t, rec.Body.String(), `"key":"Lovelace, Ada"`)

	rec = do(t, h, http.MethodGet, "/api/deliveries.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ring twice", records[1][15])

	rec = do(t, h, http.MethodGet, "/api/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), export.SheetDeliveries)
}

func TestManualEditOverHTTP(t *testing.T) {
	h := newTestServer(t).handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/refresh?wait=1", nil).Code)

	rec := do(t, h, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	edited := strings.Replace(rec.Body.String(), `"fulfillableQuantity": 2`, `"fulfillableQuantity": 1`, 1)

	rec = do(t, h, http.MethodPut, "/api/orders", []byte(edited))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/totals", nil)
	assert.Contains(t, rec.Body.String(), `"totalItems":1`)

	bad := strings.Replace(edited, `"Boulder Home Delivery"`, `"Moon Base"`, 1)
	rec = do(t, h, http.MethodPut, "/api/orders", []byte(bad))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "location_resolution")
}

func TestLabelsPreviewAndRender(t *testing.T) {
	h := newTestServer(t).handler()

	rec := do(t, h, http.MethodPost, "/api/labels", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/refresh?wait=1", nil).Code)

	rec = do(t, h, http.MethodGet, "/api/labels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview struct {
		Slots []json.RawMessage `json:"slots"`
		Pages int               `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	// Two item labels, a separator, one customer label.
	assert.Len(t, preview.Slots, 4)
	assert.Equal(t, 1, preview.Pages)

	rec = do(t, h, http.MethodPost, "/api/labels", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc render.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, render.FormatPNG, doc.Format)

	rec = do(t, h, http.MethodGet, doc.URL, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestBackgroundRefreshRefusedAfterShutdown(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	s.baseCtx = ctx
	h := s.handler()

	rec := do(t, h, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.close()
	assert.Equal(t, 1, s.state.Status().Orders)

	rec = do(t, h, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.closing = false
	cancel()
	rec = do(t, h, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
