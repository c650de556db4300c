// Package labels lays label content out on the fixed sheet grid. It decides what goes
// in every slot and where that slot sits; drawing is left to a renderer.
package labels

import (
	"strings"
	"time"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
	"github.com/phillip-england/orderprep/internal/weekday"
)

const (
	DefaultBestByWeekday = "Tuesday"
	DateStampLayout      = "1/2/2006"
)

type Kind string

const (
	Blank    Kind = "blank"
	Item     Kind = "item"
	Customer Kind = "customer"
	Extras   Kind = "extras"
)

type Slot struct {
	Index  int     `json:"index"`
	Page   int     `json:"page"`
	Row    int     `json:"row"`
	Column int     `json:"column"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Kind   Kind    `json:"kind"`

	Item     *ItemContent     `json:"item,omitempty"`
	Customer *CustomerContent `json:"customer,omitempty"`
	Extras   *ExtrasContent   `json:"extras,omitempty"`
}

type ItemContent struct {
	Title        string `json:"title"`
	Variant      string `json:"variant"`
	Instructions string `json:"instructions"`
	DateStamp    string `json:"dateStamp,omitempty"`
}

type CustomerContent struct {
	Name      string   `json:"name"`
	Address   []string `json:"address,omitempty"`
	Location  string   `json:"location"`
	DateStamp string   `json:"dateStamp,omitempty"`
}

type ExtrasContent struct {
	Title   string `json:"title"`
	Variant string `json:"variant"`
	Price   string `json:"price,omitempty"`
}

type Catalog interface {
	LabelTitle(title string) string
	Instructions(title, variant string) string
}

type Locations interface {
	Lookup(name string) (location.Location, bool)
	IsDeliveryContext(name string) bool
}

type Options struct {
	Catalog       Catalog
	Locations     Locations
	BestByWeekday string
}

type Sheet struct {
	Slots     []Slot `json:"slots"`
	Pages     int    `json:"pages"`
	DateStamp string `json:"dateStamp,omitempty"`
}

// Sequence fills slots in three passes: one item label per unit of every aggregated
// variant (a blank slot after each title), one label per customer per location, and
// one label per line item of the extras orders. Trailing blank slots are dropped.
func Sequence(totals aggregate.Totals, byLocation aggregate.LocationOrders, extras []order.Order, ref time.Time, opts Options) Sheet {
	name := opts.BestByWeekday
	if name == "" {
		name = DefaultBestByWeekday
	}
	var stamp string
	if day, ok := weekday.Next(ref, name); ok {
		stamp = day.Format(DateStampLayout)
	}

	s := &sequencer{}

	for _, title := range aggregate.SortedKeys(totals) {
		for _, v := range totals[title].SortedVariants() {
			content := ItemContent{
				Title:        opts.Catalog.LabelTitle(title),
				Variant:      v.VariantTitle,
				Instructions: opts.Catalog.Instructions(title, v.VariantTitle),
				DateStamp:    stamp,
			}
			for i := 0; i < v.Quantity; i++ {
				c := content
				s.place(Slot{Kind: Item, Item: &c})
			}
		}
		s.place(Slot{Kind: Blank})
	}

	for _, locName := range aggregate.SortedKeys(byLocation) {
		customers := byLocation[locName]
		for _, key := range aggregate.SortedKeys(customers) {
			co := customers[key]
			s.place(Slot{Kind: Customer, Customer: &CustomerContent{
				Name:      co.Shipping.Name,
				Address:   customerAddress(locName, co.Shipping, opts.Locations),
				Location:  locName,
				DateStamp: stamp,
			}})
		}
	}

	for _, o := range extras {
		for _, item := range o.Items {
			s.place(Slot{Kind: Extras, Extras: &ExtrasContent{
				Title:   item.Title,
				Variant: item.VariantTitle,
				Price:   item.FormattedPrice(),
			}})
		}
	}

	s.trimTrailingBlanks()
	return Sheet{Slots: s.slots, Pages: PageCount(len(s.slots)), DateStamp: stamp}
}

// PageCount is the number of pages needed for n slots.
func PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PerPage - 1) / PerPage
}

type sequencer struct {
	slots []Slot
}

func (s *sequencer) place(slot Slot) {
	slot.Index = len(s.slots)
	slot.Page, slot.Row, slot.Column = Position(slot.Index)
	slot.X = ColumnX(slot.Column)
	slot.Y = RowY(slot.Row)
	s.slots = append(s.slots, slot)
}

func (s *sequencer) trimTrailingBlanks() {
	end := len(s.slots)
	for end > 0 && s.slots[end-1].Kind == Blank {
		end--
	}
	s.slots = s.slots[:end]
}

func customerAddress(locName string, shipping order.ShippingAddress, locs Locations) []string {
	if locs.IsDeliveryContext(locName) {
		var lines []string
		for _, line := range []string{shipping.Address1, shipping.Address2} {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if shipping.Zip != "" {
			lines = append(lines, shipping.City+", "+shipping.Zip)
		}
		if shipping.Phone != "" {
			lines = append(lines, shipping.Phone)
		}
		return lines
	}
	if _, ok := locs.Lookup(locName); ok {
		return nil
	}
	return []string{location.MissingAddress}
}

// ExtrasOrders picks the catch-all extras orders out of a validated batch.
func ExtrasOrders(orders []order.Order, customerName string) []order.Order {
	return aggregate.CustomersNamed(orders, customerName)
}
