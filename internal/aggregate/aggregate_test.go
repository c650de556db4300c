package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
)

func item(title, variant string, qty, fulfillable int) order.OrderItem {
	return order.OrderItem{Title: title, VariantTitle: variant, Quantity: qty, FulfillableQuantity: fulfillable}
}

func newOrder(id, first, last, tag string, items ...order.OrderItem) order.Order {
	return order.Order{
		ID: id,
		ShippingAddress: order.ShippingAddress{
			FirstName: first,
			LastName:  last,
			Name:      first + " " + last,
		},
		Tags:  []string{tag},
		Items: items,
	}
}

func TestTotalsSumFulfillableQuantities(t *testing.T) {
	orders := []order.Order{
		newOrder("1", "Ada", "Lovelace", "Boulder Savory Spice", item("Polenta", "Frozen Pint", 2, 2)),
		newOrder("2", "Alan", "Turing", "Boulder Home Delivery", item("Polenta", "Frozen Pint", 3, 3)),
	}

	totals := ComputeTotals(orders)

	want := Totals{
		"Polenta": {Title: "Polenta", Variants: map[string]Variant{
			"Frozen Pint": {VariantTitle: "Frozen Pint", Quantity: 5},
		}},
	}
	if diff := cmp.Diff(want, totals); diff != "" {
		t.Fatalf("totals mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, totals.Count())
}

func TestTotalsSkipTipsAndUnfulfillable(t *testing.T) {
	orders := []order.Order{
		newOrder("1", "A", "B", "Boulder Savory Spice",
			item("Tip", "Default", 5, 5),
			item("Compote", "Pint", 4, 0),
			item("Compote", "Half Pint", 1, 1),
		),
		newOrder("2", "C", "D", "Boulder Savory Spice"),
	}

	totals := ComputeTotals(orders)

	assert.NotContains(t, totals, "Tip")
	_, hasPint := totals["Compote"].Variants["Pint"]
	assert.False(t, hasPint, "zero quantities leave no variant key")
	assert.Equal(t, 1, totals.Quantity("Compote", "Half Pint"))
	assert.Equal(t, 0, totals.Quantity("Nothing", "Nope"))
}

func TestOverfilledItemStillAggregates(t *testing.T) {
	totals := ComputeTotals([]order.Order{
		newOrder("1", "A", "B", "Boulder Savory Spice", item("Polenta", "Frozen Pint", 2, 3)),
	})
	assert.Equal(t, 3, totals.Quantity("Polenta", "Frozen Pint"))
}

func TestMergeDoesNotMutatePrevious(t *testing.T) {
	first := Merge(nil, newOrder("1", "A", "B", "x", item("Polenta", "Frozen Pint", 1, 1)))
	snapshot := first["Polenta"].Variants["Frozen Pint"]

	second := Merge(first, newOrder("2", "A", "B", "x", item("Polenta", "Frozen Pint", 4, 4)))

	assert.Equal(t, snapshot, first["Polenta"].Variants["Frozen Pint"])
	assert.Equal(t, 1, first.Quantity("Polenta", "Frozen Pint"))
	assert.Equal(t, 5, second.Quantity("Polenta", "Frozen Pint"))
}

func TestByLocationMergesCustomersLastWriteWins(t *testing.T) {
	a := newOrder("1", "Ada", "Lovelace", "Boulder Home Delivery", item("Polenta", "Frozen Pint", 1, 1))
	a.Note = "first note"
	a.Email = "old@example.com"
	a.ShippingAddress.Address1 = "1 Old Rd"

	b := newOrder("2", "Ada", "Lovelace", "Boulder Home Delivery", item("Polenta", "Frozen Pint", 2, 2), item("Compote", "Pint", 1, 1))
	b.Email = "new@example.com"
	b.ShippingAddress.Address1 = "2 New Rd"

	c := newOrder("3", "Alan", "Turing", "Boulder Savory Spice", item("Compote", "Pint", 1, 1))
	stray := newOrder("4", "No", "Where", "not-a-location", item("Compote", "Pint", 9, 9))

	grouped := ByLocation([]order.Order{a, b, c, stray}, location.DefaultTable)

	require.Len(t, grouped, 2)
	ada := grouped["Boulder Home Delivery"]["Lovelace, Ada"]
	assert.Equal(t, 3, ada.Items.Quantity("Polenta", "Frozen Pint"))
	assert.Equal(t, 1, ada.Items.Quantity("Compote", "Pint"))
	assert.Equal(t, "2 New Rd", ada.Shipping.Address1)
	assert.Equal(t, "", ada.Note, "note is replaced, not merged")
	assert.Equal(t, "new@example.com", ada.Email)

	assert.Contains(t, grouped["Boulder Savory Spice"], "Turing, Alan")
}

func TestLocationTotals(t *testing.T) {
	orders := []order.Order{
		newOrder("1", "A", "B", "Boulder Home Delivery", item("Polenta", "Frozen Pint", 1, 1)),
		newOrder("2", "C", "D", "Boulder Home Delivery", item("Polenta", "Frozen Pint", 2, 2)),
		newOrder("3", "E", "F", "Boulder Savory Spice", item("Polenta", "Frozen Pint", 4, 4)),
	}
	byLoc := LocationTotals(orders, location.DefaultTable)

	assert.Equal(t, 3, byLoc["Boulder Home Delivery"].Count())
	assert.Equal(t, 4, byLoc["Boulder Savory Spice"].Count())
}

func TestCustomersNamed(t *testing.T) {
	extras := newOrder("1", "Extras", "Extras", "Boulder Savory Spice")
	extras.ShippingAddress.Name = "  EXTRAS extras "
	regular := newOrder("2", "Ada", "Lovelace", "Boulder Savory Spice")

	got := CustomersNamed([]order.Order{regular, extras}, "extras extras")
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestSortStringsUsesCollation(t *testing.T) {
	s := []string{"fig", "Cherry", "Éclair", "apple", "banana", "date"}
	SortStrings(s)
	assert.Equal(t, []string{"apple", "banana", "Cherry", "date", "Éclair", "fig"}, s)
}

func TestSortedVariants(t *testing.T) {
	it := Item{Title: "Muffins", Variants: map[string]Variant{
		"one dozen":    {VariantTitle: "one dozen", Quantity: 1},
		"Four Muffins": {VariantTitle: "Four Muffins", Quantity: 2},
		"Half Dozen":   {VariantTitle: "Half Dozen", Quantity: 3},
	}}
	got := it.SortedVariants()
	require.Len(t, got, 3)
	assert.Equal(t, "Four Muffins", got[0].VariantTitle)
	assert.Equal(t, "Half Dozen", got[1].VariantTitle)
	assert.Equal(t, "one dozen", got[2].VariantTitle)
}
