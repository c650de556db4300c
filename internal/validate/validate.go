// Package validate checks decoded order payloads against the structural and business
// rules of the order model. Problems are collected, never returned as errors: a bad
// order or item never stops the rest of the batch from being checked.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
)

type Resolver interface {
	Resolve(tags []string) (location.Location, bool)
}

// Result is the outcome for one element: either a usable Order (possibly with item
// level problems) or a rejection whose Reason is the first problem found.
type Result struct {
	Order  *order.Order
	Reason string
	Errors []order.ValidationError
}

func (r Result) Valid() bool {
	return r.Order != nil
}

type Report struct {
	Orders   []order.Order
	Errors   []order.ValidationError
	Rejected int
}

// Acceptable reports whether every element became an order and every item parsed.
// Business rule findings do not block acceptance.
func (r Report) Acceptable() bool {
	if r.Rejected > 0 {
		return false
	}
	for _, e := range r.Errors {
		if e.Kind != order.BusinessRuleError {
			return false
		}
	}
	return true
}

type Validator struct {
	resolver Resolver
}

func New(resolver Resolver) *Validator {
	return &Validator{resolver: resolver}
}

func (v *Validator) Validate(raw []any) Report {
	report := Report{Orders: make([]order.Order, 0, len(raw))}
	for _, element := range raw {
		res := v.Check(element)
		report.Errors = append(report.Errors, res.Errors...)
		if !res.Valid() {
			report.Rejected++
			continue
		}
		report.Orders = append(report.Orders, *res.Order)
	}
	return report
}

// ValidateJSON parses a JSON array of orders and validates it.
func (v *Validator) ValidateJSON(data []byte) (Report, error) {
	raw, err := ParseJSON(data)
	if err != nil {
		return Report{}, err
	}
	return v.Validate(raw), nil
}

func (v *Validator) Check(raw any) Result {
	obj, ok := raw.(map[string]any)
	if !ok {
		return reject(order.ValidationError{
			Kind:    order.StructuralError,
			Message: fmt.Sprintf("order must be an object, got %s", describe(raw)),
			Order:   raw,
		})
	}

	var errs []order.ValidationError
	fail := func(kind order.ErrorKind, id, format string, args ...any) {
		errs = append(errs, order.ValidationError{
			Kind:    kind,
			OrderID: id,
			Message: fmt.Sprintf(format, args...),
			Order:   raw,
		})
	}

	id, _ := obj["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		fail(order.StructuralError, "", "order is missing an id")
	}

	address, err := shippingAddress(obj["shippingAddress"])
	if err != nil {
		fail(order.StructuralError, id, "%v", err)
	}

	tags, err := stringList(obj["tags"])
	switch {
	case err != nil:
		fail(order.StructuralError, id, "tags: %v", err)
	case len(tags) == 0:
		fail(order.StructuralError, id, "order has no tags")
	default:
		if _, ok := v.resolver.Resolve(tags); !ok {
			fail(order.LocationResolutionError, id, "no tag matches a known location: %s", strings.Join(tags, ", "))
		}
	}

	items, isList := obj["items"].([]any)
	if !isList {
		fail(order.StructuralError, id, "order is missing an items list")
	}

	note, err := optionalString(obj, "note")
	if err != nil {
		fail(order.StructuralError, id, "%v", err)
	}
	email, err := optionalString(obj, "email")
	if err != nil {
		fail(order.StructuralError, id, "%v", err)
	}

	if len(errs) > 0 {
		return Result{Reason: errs[0].Message, Errors: errs}
	}

	o := order.Order{
		ID:              id,
		ShippingAddress: address,
		Tags:            tags,
		Items:           make([]order.OrderItem, 0, len(items)),
		Note:            note,
		Email:           email,
	}
	for i, rawItem := range items {
		item, err := orderItem(rawItem)
		if err != nil {
			errs = append(errs, order.ValidationError{
				Kind:    order.StructuralError,
				OrderID: id,
				Message: fmt.Sprintf("item %d: %v", i, err),
				Item:    rawItem,
			})
			continue
		}
		if item.Overfilled() {
			errs = append(errs, order.ValidationError{
				Kind:    order.BusinessRuleError,
				OrderID: id,
				Message: fmt.Sprintf("This order item's fulfillable quantity of %d is greater than the order's quantity of %d: %s", item.FulfillableQuantity, item.Quantity, item.Title),
				Item:    item,
			})
		}
		o.Items = append(o.Items, item)
	}
	return Result{Order: &o, Errors: errs}
}

func reject(e order.ValidationError) Result {
	return Result{Reason: e.Message, Errors: []order.ValidationError{e}}
}

func shippingAddress(raw any) (order.ShippingAddress, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return order.ShippingAddress{}, errors.New("order is missing a shipping address")
	}
	var addr order.ShippingAddress
	fields := []struct {
		key string
		dst *string
	}{
		{"firstName", &addr.FirstName},
		{"lastName", &addr.LastName},
		{"name", &addr.Name},
		{"address1", &addr.Address1},
		{"address2", &addr.Address2},
		{"city", &addr.City},
		{"zip", &addr.Zip},
		{"phone", &addr.Phone},
	}
	for _, f := range fields {
		value, err := optionalString(obj, f.key)
		if err != nil {
			return order.ShippingAddress{}, fmt.Errorf("shipping address %v", err)
		}
		*f.dst = value
	}
	if !addr.Valid() {
		return order.ShippingAddress{}, errors.New("shipping address has no name")
	}
	return addr, nil
}

func orderItem(raw any) (order.OrderItem, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return order.OrderItem{}, fmt.Errorf("must be an object, got %s", describe(raw))
	}
	var item order.OrderItem
	var err error

	if item.Title, err = requiredString(obj, "title"); err != nil {
		return order.OrderItem{}, err
	}
	if item.VariantTitle, err = requiredString(obj, "variantTitle"); err != nil {
		return order.OrderItem{}, err
	}
	if item.Quantity, err = requiredCount(obj, "quantity"); err != nil {
		return order.OrderItem{}, err
	}
	if item.FulfillableQuantity, err = requiredCount(obj, "fulfillableQuantity"); err != nil {
		return order.OrderItem{}, err
	}
	if _, present := obj["nonFulfillableQuantity"]; present {
		if item.NonFulfillableQuantity, err = requiredCount(obj, "nonFulfillableQuantity"); err != nil {
			return order.OrderItem{}, err
		}
	}
	if rawPrice, present := obj["unitPrice"]; present && rawPrice != nil {
		price, ok := number(rawPrice)
		if !ok {
			if s, isString := rawPrice.(string); isString {
				if parsed, perr := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(s), "$"), 64); perr == nil {
					price, ok = parsed, true
				}
			}
		}
		if !ok {
			return order.OrderItem{}, fmt.Errorf("unitPrice must be numeric, got %s", describe(rawPrice))
		}
		item.UnitPrice = &price
	}
	return item, nil
}

func requiredString(obj map[string]any, key string) (string, error) {
	s, ok := obj[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func optionalString(obj map[string]any, key string) (string, error) {
	raw, present := obj[key]
	if !present || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", key, describe(raw))
	}
	return s, nil
}

// MaxQuantity caps item quantities so every accepted count fits an int.
const MaxQuantity = math.MaxInt32

func requiredCount(obj map[string]any, key string) (int, error) {
	raw, present := obj[key]
	if !present {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, ok := number(raw)
	if !ok {
		return 0, fmt.Errorf("%s must be numeric, got %s", key, describe(raw))
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a whole number, got %v", key, f)
	}
	if f < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, f)
	}
	if f > MaxQuantity {
		return 0, fmt.Errorf("%s out of range, got %v (max %d)", key, f, MaxQuantity)
	}
	return int(f), nil
}

func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringList(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list, got %s", describe(raw))
	}
	out := make([]string, 0, len(list))
	for i, el := range list {
		s, ok := el.(string)
		if !ok {
			return nil, fmt.Errorf("tag %d must be a string, got %s", i, describe(el))
		}
		out = append(out, s)
	}
	return out, nil
}

func describe(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number, int:
		return "number"
	default:
		return fmt.Sprintf("%T", raw)
	}
}

// ParseJSON decodes a JSON array of order payloads, keeping numbers exact.
func ParseJSON(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode orders: trailing data after JSON value")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("decode orders: expected a list, got %s", describe(raw))
	}
	return list, nil
}
