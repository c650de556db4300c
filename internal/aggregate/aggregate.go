// Package aggregate folds validated orders into quantity totals keyed by product title
// and variant title, and groups orders by location and customer.
//
// Every merge returns a new Totals value. A Totals handed to a caller is never written
// again, so callers may keep references to earlier steps of a fold.
package aggregate

import (
	"strings"

	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
)

type Variant struct {
	VariantTitle string `json:"variantTitle"`
	Quantity     int    `json:"quantity"`
}

type Item struct {
	Title    string             `json:"title"`
	Variants map[string]Variant `json:"variants"`
}

// Totals maps product title to its per-variant quantities. A missing variant key means zero.
type Totals map[string]Item

// Quantity is the running total for one title/variant pair.
func (t Totals) Quantity(title, variant string) int {
	return t[title].Variants[variant].Quantity
}

// Count is the number of units across all titles and variants.
func (t Totals) Count() int {
	total := 0
	for _, item := range t {
		for _, v := range item.Variants {
			total += v.Quantity
		}
	}
	return total
}

// Merge adds the countable items of o to prev and returns the result. prev is not modified.
func Merge(prev Totals, o order.Order) Totals {
	next := make(Totals, len(prev)+len(o.Items))
	for title, item := range prev {
		next[title] = item
	}
	touched := make(map[string]bool)
	for _, line := range o.Items {
		if !line.Counts() {
			continue
		}
		item, ok := next[line.Title]
		if !ok {
			item = Item{Title: line.Title, Variants: map[string]Variant{}}
			touched[line.Title] = true
		}
		if !touched[line.Title] {
			item = item.clone()
			touched[line.Title] = true
		}
		v := item.Variants[line.VariantTitle]
		v.VariantTitle = line.VariantTitle
		v.Quantity += line.FulfillableQuantity
		item.Variants[line.VariantTitle] = v
		next[line.Title] = item
	}
	return next
}

func (i Item) clone() Item {
	variants := make(map[string]Variant, len(i.Variants))
	for k, v := range i.Variants {
		variants[k] = v
	}
	return Item{Title: i.Title, Variants: variants}
}

// ComputeTotals folds every order into one Totals.
func ComputeTotals(orders []order.Order) Totals {
	totals := Totals{}
	for _, o := range orders {
		totals = Merge(totals, o)
	}
	return totals
}

type Resolver interface {
	Resolve(tags []string) (location.Location, bool)
}

type CustomerOrder struct {
	Shipping order.ShippingAddress `json:"shipping"`
	Items    Totals                `json:"items"`
	Note     string                `json:"note,omitempty"`
	Email    string                `json:"email"`
}

// LocationOrders maps location name to customer key to the customer's merged order.
type LocationOrders map[string]map[string]CustomerOrder

// ByLocation groups orders by resolved location and then by customer key. When a
// customer has several orders at one location the items are summed and the shipping
// address, note and email of the last order in input order win.
func ByLocation(orders []order.Order, resolver Resolver) LocationOrders {
	out := LocationOrders{}
	for _, o := range orders {
		loc, ok := resolver.Resolve(o.Tags)
		if !ok {
			continue
		}
		customers, ok := out[loc.Name]
		if !ok {
			customers = map[string]CustomerOrder{}
			out[loc.Name] = customers
		}
		key := o.ShippingAddress.CustomerKey()
		prev := customers[key]
		customers[key] = CustomerOrder{
			Shipping: o.ShippingAddress,
			Items:    Merge(prev.Items, o),
			Note:     o.Note,
			Email:    o.Email,
		}
	}
	return out
}

// LocationTotals folds orders into one Totals per resolved location.
func LocationTotals(orders []order.Order, resolver Resolver) map[string]Totals {
	out := map[string]Totals{}
	for _, o := range orders {
		loc, ok := resolver.Resolve(o.Tags)
		if !ok {
			continue
		}
		out[loc.Name] = Merge(out[loc.Name], o)
	}
	return out
}

// CustomersNamed returns, in input order, the orders whose shipping name matches name
// after trimming, ignoring case.
func CustomersNamed(orders []order.Order, name string) []order.Order {
	want := strings.TrimSpace(name)
	var out []order.Order
	for _, o := range orders {
		if strings.EqualFold(strings.TrimSpace(o.ShippingAddress.Name), want) {
			out = append(out, o)
		}
	}
	return out
}
