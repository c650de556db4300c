// Package export produces the operator facing files: the delivery manifest CSV and
// an XLSX workbook of totals, customer orders and deliveries.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
)

// ManifestHeader is the column layout the delivery service imports. The empty
// columns are fields it expects but this shop never fills.
var ManifestHeader = []string{
	"dest_first_name", "dest_last_name", "dest_phone_number", "dest_email",
	"dest_address_line_1", "dest_address_line_2", "dest_city", "dest_state", "dest_zip",
	"", "", "", "", "", "",
	"dest_remarks",
}

type Locations interface {
	Lookup(name string) (location.Location, bool)
	IsDeliveryContext(name string) bool
}

// DeliveryRows lists every customer at a delivery location, locations and customers
// in collation order. The header is not included.
func DeliveryRows(byLocation aggregate.LocationOrders, locs Locations, state string) [][]string {
	var rows [][]string
	for _, name := range aggregate.SortedKeys(byLocation) {
		if !locs.IsDeliveryContext(name) {
			continue
		}
		customers := byLocation[name]
		for _, key := range aggregate.SortedKeys(customers) {
			co := customers[key]
			s := co.Shipping
			row := []string{
				s.FirstName, s.LastName, s.Phone, co.Email,
				s.Address1, s.Address2, s.City, state, s.Zip,
				"", "", "", "", "", "",
				co.Note,
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func WriteManifestCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ManifestHeader); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write manifest rows: %w", err)
	}
	return nil
}

// LocationView is how one location appears on the deliveries page: delivery
// locations list their customers' addresses, pickup locations show the site address
// and anything else is flagged as missing an address.
type LocationView struct {
	Name      string                  `json:"name"`
	Delivery  bool                    `json:"delivery"`
	Pickup    *location.Location      `json:"pickup,omitempty"`
	Customers []order.ShippingAddress `json:"customers,omitempty"`
	Missing   string                  `json:"missing,omitempty"`
}

func LocationViews(byLocation aggregate.LocationOrders, locs Locations) []LocationView {
	views := make([]LocationView, 0, len(byLocation))
	for _, name := range aggregate.SortedKeys(byLocation) {
		view := LocationView{Name: name}
		switch loc, known := locs.Lookup(name); {
		case locs.IsDeliveryContext(name):
			view.Delivery = true
			customers := byLocation[name]
			for _, key := range aggregate.SortedKeys(customers) {
				view.Customers = append(view.Customers, customers[key].Shipping)
			}
		case known && loc.HasStreetAddress():
			view.Pickup = &loc
		default:
			view.Missing = location.MissingAddress
		}
		views = append(views, view)
	}
	return views
}
