package order

import (
	"fmt"
	"strings"
)

// TipTitle is the line item title that never counts toward totals.
const TipTitle = "Tip"

type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone,omitempty"`
}

func (a ShippingAddress) Valid() bool {
	return strings.TrimSpace(a.Name) != ""
}

// CustomerKey groups orders placed by the same person at one location.
func (a ShippingAddress) CustomerKey() string {
	return a.LastName + ", " + a.FirstName
}

type OrderItem struct {
	Title                  string   `json:"title"`
	VariantTitle           string   `json:"variantTitle"`
	Quantity               int      `json:"quantity"`
	FulfillableQuantity    int      `json:"fulfillableQuantity"`
	NonFulfillableQuantity int      `json:"nonFulfillableQuantity"`
	UnitPrice              *float64 `json:"unitPrice,omitempty"`
}

// Counts reports whether the item contributes to aggregated totals.
func (i OrderItem) Counts() bool {
	return i.FulfillableQuantity > 0 && i.Title != TipTitle
}

// Overfilled is the business rule violation where more can be fulfilled than was ordered.
func (i OrderItem) Overfilled() bool {
	return i.FulfillableQuantity > i.Quantity
}

// FormattedPrice renders the unit price with two decimals, or "" when the price is unknown.
func (i OrderItem) FormattedPrice() string {
	if i.UnitPrice == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *i.UnitPrice)
}

type Order struct {
	ID              string          `json:"id"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Tags            []string        `json:"tags"`
	Items           []OrderItem     `json:"items"`
	Note            string          `json:"note"`
	Email           string          `json:"email"`
}

// Clone returns a deep copy so callers can hand out orders without sharing slices.
func (o Order) Clone() Order {
	out := o
	out.Tags = append([]string(nil), o.Tags...)
	out.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		out.Items[i] = item
		if item.UnitPrice != nil {
			price := *item.UnitPrice
			out.Items[i].UnitPrice = &price
		}
	}
	return out
}

func CloneAll(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
