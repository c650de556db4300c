package labels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/catalog"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
)

// Thursday; the next Tuesday is 10/20/2026.
var ref = time.Date(2026, time.October, 15, 8, 0, 0, 0, time.UTC)

func options() Options {
	return Options{Catalog: catalog.New(), Locations: location.DefaultTable}
}

func totalsOf(entries ...any) aggregate.Totals {
	totals := aggregate.Totals{}
	for i := 0; i < len(entries); i += 3 {
		title, variant, qty := entries[i].(string), entries[i+1].(string), entries[i+2].(int)
		totals = aggregate.Merge(totals, order.Order{Items: []order.OrderItem{
			{Title: title, VariantTitle: variant, Quantity: qty, FulfillableQuantity: qty},
		}})
	}
	return totals
}

func TestGeometry(t *testing.T) {
	assert.InDelta(t, 592.0, ContentWidth, 1e-9)
	assert.InDelta(t, 720.0, ContentHeight, 1e-9)
	assert.InDelta(t, 194.0, LabelWidth, 1e-9)
	assert.InDelta(t, 71.1, LabelHeight, 1e-9)

	assert.Equal(t, 10.0, ColumnX(0))
	assert.InDelta(t, 209.0, ColumnX(1), 1e-9)
	assert.InDelta(t, 408.0, ColumnX(2), 1e-9)
	assert.InDelta(t, PageWidth-MarginRight, ColumnX(2)+LabelWidth, 1e-9)

	assert.Equal(t, 35.0, RowY(0))
	assert.InDelta(t, PageHeight-MarginBottom, RowY(Rows-1)+LabelHeight, 1e-9)
}

func TestPositionPageBoundaries(t *testing.T) {
	for k := 0; k < 4; k++ {
		page, row, col := Position(30*k + 29)
		assert.Equal(t, k, page)
		assert.Equal(t, Rows-1, row)
		assert.Equal(t, Columns-1, col)

		page, row, col = Position(30 * k)
		assert.Equal(t, k, page)
		assert.Equal(t, 0, row)
		assert.Equal(t, 0, col)
	}
}

func TestThirtyOneLabelsSpanTwoPages(t *testing.T) {
	sheet := Sequence(totalsOf("Polenta", "Frozen Pint", 31), nil, nil, ref, options())

	require.Len(t, sheet.Slots, 31)
	assert.Equal(t, 2, sheet.Pages)

	last := sheet.Slots[30]
	assert.Equal(t, Item, last.Kind)
	assert.Equal(t, 1, last.Page)
	assert.Equal(t, 0, last.Row)
	assert.Equal(t, 0, last.Column)
	assert.Equal(t, MarginLeft, last.X)
	assert.Equal(t, MarginTop, last.Y)

	for i, s := range sheet.Slots {
		assert.Equal(t, i, s.Index)
	}
}

func TestItemPassOrderAndSeparators(t *testing.T) {
	totals := totalsOf(
		"compote", "Pint", 1,
		"Polenta", "One Tin", 1,
		"Polenta", "Frozen Pint", 2,
	)
	sheet := Sequence(totals, nil, nil, ref, options())

	kinds := make([]Kind, len(sheet.Slots))
	for i, s := range sheet.Slots {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []Kind{Item, Blank, Item, Item, Item}, kinds)

	assert.Equal(t, "compote", sheet.Slots[0].Item.Title)
	assert.Equal(t, "Frozen Pint", sheet.Slots[2].Item.Variant)
	assert.Equal(t, "One Tin", sheet.Slots[4].Item.Variant)
	assert.Equal(t, catalog.DefaultInstructions["One Tin"], sheet.Slots[4].Item.Instructions)
	assert.Equal(t, catalog.FallbackInstruction, sheet.Slots[0].Item.Instructions)
	assert.Equal(t, "10/20/2026", sheet.Slots[0].Item.DateStamp)
	assert.Equal(t, "10/20/2026", sheet.DateStamp)
}

func TestItemLabelsUseCatalogTitle(t *testing.T) {
	opts := options()
	opts.Catalog = catalog.New(catalog.Product{Title: "Polenta", Label: &catalog.Label{Title: "Creamy Polenta"}})

	sheet := Sequence(totalsOf("Polenta", "Frozen Pint", 1), nil, nil, ref, opts)
	require.Len(t, sheet.Slots, 1)
	assert.Equal(t, "Creamy Polenta", sheet.Slots[0].Item.Title)
}

func TestCustomerPass(t *testing.T) {
	shipping := order.ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace", Name: "Ada Lovelace",
		Address1: "1 Main St", Address2: "Apt 2", City: "Boulder", Zip: "80302", Phone: "555-0100",
	}
	byLocation := aggregate.LocationOrders{
		"Boulder Savory Spice":  {"Lovelace, Ada": {Shipping: shipping}},
		"Boulder Home Delivery": {"Lovelace, Ada": {Shipping: shipping}, "Babbage, Charles": {Shipping: order.ShippingAddress{Name: "Charles Babbage"}}},
		"Mystery Spot":          {"Lovelace, Ada": {Shipping: shipping}},
	}

	sheet := Sequence(nil, byLocation, nil, ref, options())
	require.Len(t, sheet.Slots, 4)

	first := sheet.Slots[0].Customer
	require.NotNil(t, first)
	assert.Equal(t, "Boulder Home Delivery", first.Location)
	assert.Equal(t, "Charles Babbage", first.Name)
	assert.Empty(t, first.Address)

	delivery := sheet.Slots[1].Customer
	assert.Equal(t, []string{"1 Main St", "Apt 2", "Boulder, 80302", "555-0100"}, delivery.Address)

	pickup := sheet.Slots[2].Customer
	assert.Equal(t, "Boulder Savory Spice", pickup.Location)
	assert.Nil(t, pickup.Address)

	unknown := sheet.Slots[3].Customer
	assert.Equal(t, "Mystery Spot", unknown.Location)
	assert.Equal(t, []string{location.MissingAddress}, unknown.Address)
	assert.Equal(t, "10/20/2026", unknown.DateStamp)
}

func TestExtrasPassOneSlotPerLineItem(t *testing.T) {
	price := 4.5
	extras := []order.Order{{
		ID:              "x",
		ShippingAddress: order.ShippingAddress{Name: "Extras Extras"},
		Items: []order.OrderItem{
			{Title: "Granola", VariantTitle: "Bag", Quantity: 3, FulfillableQuantity: 3, UnitPrice: &price},
			{Title: "Coffee", VariantTitle: "Pound", Quantity: 1, FulfillableQuantity: 1},
		},
	}}

	sheet := Sequence(totalsOf("Polenta", "Frozen Pint", 1), nil, extras, ref, options())
	require.Len(t, sheet.Slots, 4)
	assert.Equal(t, Blank, sheet.Slots[1].Kind)
	assert.Equal(t, &ExtrasContent{Title: "Granola", Variant: "Bag", Price: "4.50"}, sheet.Slots[2].Extras)
	assert.Equal(t, "", sheet.Slots[3].Extras.Price)
}

func TestEmptySequence(t *testing.T) {
	sheet := Sequence(nil, nil, nil, ref, options())
	assert.Empty(t, sheet.Slots)
	assert.Equal(t, 0, sheet.Pages)
}

func TestUnknownWeekdayLeavesDateStampEmpty(t *testing.T) {
	opts := options()
	opts.BestByWeekday = "Someday"
	sheet := Sequence(totalsOf("Polenta", "Frozen Pint", 1), nil, nil, ref, opts)
	assert.Equal(t, "", sheet.Slots[0].Item.DateStamp)
}

func TestExtrasOrders(t *testing.T) {
	orders := []order.Order{
		{ID: "1", ShippingAddress: order.ShippingAddress{Name: "extras extras"}},
		{ID: "2", ShippingAddress: order.ShippingAddress{Name: "Extra Extras"}},
	}
	got := ExtrasOrders(orders, "Extras Extras")
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}
