// Package shop fetches open orders from the order management API and shapes them
// into the raw payloads the validator expects.
package shop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/phillip-england/orderprep/internal/logging"
	"github.com/phillip-england/orderprep/internal/order"
)

const (
	ordersPath    = "/api/orders"
	lineItemsPath = "/api/order/%s/line-items"

	maxResponseBytes = 32 << 20
)

// OpenStatuses are the fulfillment statuses that still need preparing.
var OpenStatuses = map[string]bool{
	"UNFULFILLED":         true,
	"PARTIALLY_FULFILLED": true,
	"OPEN":                true,
}

// FetchError aborts a run. No partial order list survives it.
type FetchError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s returned %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Progress is called after each order's line items arrive.
type Progress func(done, total int)

// Batch is the outcome of one fetch. Orders are raw maps with an "items" list
// attached; Faulty holds listing nodes that could not be fetched further.
type Batch struct {
	Orders []any
	Faulty []order.ValidationError
	Listed int
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *logging.Logger
}

func NewClient(baseURL string, httpClient *http.Client, log *logging.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With("component", "shop"),
	}
}

// FetchOrders lists orders, keeps the open ones and then fetches line items one
// order at a time.
func (c *Client) FetchOrders(ctx context.Context, progress Progress) (Batch, error) {
	listURL := c.baseURL + ordersPath
	c.log.Info("fetching orders", "url", listURL)

	doc, err := c.getJSON(ctx, "list orders", listURL)
	if err != nil {
		return Batch{}, err
	}
	nodes, err := orderNodes(doc)
	if err != nil {
		return Batch{}, &FetchError{Op: "list orders", URL: listURL, Err: err}
	}

	var batch Batch
	batch.Listed = len(nodes)
	var open []map[string]any
	for _, node := range nodes {
		obj, ok := fetchable(node)
		if !ok {
			batch.Faulty = append(batch.Faulty, faulty(node))
			continue
		}
		status, _ := obj["displayFulfillmentStatus"].(string)
		if !OpenStatuses[status] {
			continue
		}
		open = append(open, obj)
	}
	if len(batch.Faulty) > 0 {
		c.log.Warn("orders with faulty data", "count", len(batch.Faulty))
	}

	batch.Orders = make([]any, 0, len(open))
	for i, obj := range open {
		id := obj["id"].(string)
		itemsURL := c.baseURL + fmt.Sprintf(lineItemsPath, url.PathEscape(TrailingID(id)))

		doc, err := c.getJSON(ctx, "fetch line items", itemsURL)
		if err != nil {
			return Batch{}, err
		}
		raw := copyMap(obj)
		if items, ok := lineItems(doc); ok {
			raw["items"] = items
		}
		batch.Orders = append(batch.Orders, raw)

		c.log.Debug("fetched order", "order_id", id, "done", i+1, "total", len(open))
		if progress != nil {
			progress(i+1, len(open))
		}
	}
	c.log.Info("fetched orders", "listed", batch.Listed, "open", len(open), "faulty", len(batch.Faulty))
	return batch, nil
}

// TrailingID is the last path segment of an opaque identifier such as
// "gid://shopify/Order/123".
func TrailingID(id string) string {
	return id[strings.LastIndex(id, "/")+1:]
}

func (c *Client) getJSON(ctx context.Context, op, target string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Op: op, URL: target, Status: resp.StatusCode, Err: errors.New(snippet(body))}
	}
	doc, err := DecodeDocument(body)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}
	return doc, nil
}

// DecodeDocument decodes a response body. The API sometimes wraps the JSON document
// in a JSON string; both forms are accepted.
func DecodeDocument(body []byte) (any, error) {
	doc, err := decode(body)
	if err != nil {
		return nil, err
	}
	if s, ok := doc.(string); ok {
		if doc, err = decode([]byte(s)); err != nil {
			return nil, fmt.Errorf("decode wrapped document: %w", err)
		}
	}
	return doc, nil
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

func orderNodes(doc any) ([]any, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.New("response is not an object")
	}
	if data, ok := root["data"].(map[string]any); ok {
		orders, _ := data["orders"].(map[string]any)
		return edgeNodes(orders)
	}
	if apiErrors, ok := root["errors"].([]any); ok && len(apiErrors) > 0 {
		return nil, fmt.Errorf("api errors: %s", describeErrors(apiErrors))
	}
	return nil, errors.New("response has neither data nor errors")
}

func lineItems(doc any) ([]any, bool) {
	root, _ := doc.(map[string]any)
	data, _ := root["data"].(map[string]any)
	o, _ := data["order"].(map[string]any)
	conn, ok := o["lineItems"].(map[string]any)
	if !ok {
		return nil, false
	}
	nodes, err := edgeNodes(conn)
	if err != nil {
		return nil, false
	}
	items := make([]any, 0, len(nodes))
	for _, node := range nodes {
		item, ok := node.(map[string]any)
		if !ok {
			items = append(items, node)
			continue
		}
		item = copyMap(item)
		if price, ok := unitPrice(item); ok {
			item["unitPrice"] = price
		}
		items = append(items, item)
	}
	return items, true
}

func edgeNodes(conn map[string]any) ([]any, error) {
	edges, ok := conn["edges"].([]any)
	if !ok {
		return nil, errors.New("connection has no edges")
	}
	nodes := make([]any, 0, len(edges))
	for _, edge := range edges {
		e, _ := edge.(map[string]any)
		nodes = append(nodes, e["node"])
	}
	return nodes, nil
}

func unitPrice(item map[string]any) (any, bool) {
	set, _ := item["originalUnitPriceSet"].(map[string]any)
	money, _ := set["shopMoney"].(map[string]any)
	amount, ok := money["amount"]
	if !ok || amount == nil {
		return nil, false
	}
	return amount, true
}

func fetchable(node any) (map[string]any, bool) {
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	if id, _ := obj["id"].(string); strings.TrimSpace(id) == "" {
		return nil, false
	}
	addr, _ := obj["shippingAddress"].(map[string]any)
	if name, _ := addr["name"].(string); strings.TrimSpace(name) == "" {
		return nil, false
	}
	return obj, true
}

func faulty(node any) order.ValidationError {
	obj, _ := node.(map[string]any)
	id, _ := obj["id"].(string)
	return order.ValidationError{
		Kind:    order.StructuralError,
		OrderID: id,
		Message: "order with faulty data: missing id or shipping address name",
		Order:   node,
	}
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func describeErrors(list []any) string {
	messages := make([]string, 0, len(list))
	for _, raw := range list {
		if obj, ok := raw.(map[string]any); ok {
			if msg, ok := obj["message"].(string); ok {
				messages = append(messages, msg)
				continue
			}
		}
		messages = append(messages, fmt.Sprint(raw))
	}
	return strings.Join(messages, "; ")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
