package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/orderprep/internal/aggregate"
)

const (
	SheetTotals         = "Totals"
	SheetLocationTotals = "Location Totals"
	SheetOrders         = "Orders"
	SheetDeliveries     = "Deliveries"

	TotalItemsLabel = "Total items"
)

type WorkbookInput struct {
	Totals         aggregate.Totals
	LocationTotals map[string]aggregate.Totals
	ByLocation     aggregate.LocationOrders
	Locations      Locations
	DeliveryState  string
}

// Workbook builds the export workbook. The caller owns the returned file and must
// close it.
func Workbook(in WorkbookInput) (*excelize.File, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	w := &sheetWriter{f: f, header: header}

	w.sheet(SheetTotals, []string{"Title", "Variant", "Quantity"})
	for _, row := range totalsRows(in.Totals) {
		w.row(row...)
	}
	w.row(TotalItemsLabel, "", in.Totals.Count())

	w.sheet(SheetLocationTotals, []string{"Location", "Title", "Variant", "Quantity"})
	for _, name := range aggregate.SortedKeys(in.LocationTotals) {
		totals := in.LocationTotals[name]
		for _, row := range totalsRows(totals) {
			w.row(append([]any{name}, row...)...)
		}
		w.row(name, TotalItemsLabel, "", totals.Count())
	}

	w.sheet(SheetOrders, []string{"Location", "Customer", "Name", "Email", "Note", "Title", "Variant", "Quantity"})
	for _, name := range aggregate.SortedKeys(in.ByLocation) {
		customers := in.ByLocation[name]
		for _, key := range aggregate.SortedKeys(customers) {
			co := customers[key]
			for _, row := range totalsRows(co.Items) {
				w.row(append([]any{name, key, co.Shipping.Name, co.Email, co.Note}, row...)...)
			}
		}
	}

	w.sheet(SheetDeliveries, ManifestHeader)
	for _, row := range DeliveryRows(in.ByLocation, in.Locations, in.DeliveryState) {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		w.row(cells...)
	}

	if w.err != nil {
		_ = f.Close()
		return nil, w.err
	}
	// NewFile starts with Sheet1; every sheet above was added after it.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetTotals); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

func WriteWorkbook(out io.Writer, in WorkbookInput) error {
	f, err := Workbook(in)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func totalsRows(t aggregate.Totals) [][]any {
	var rows [][]any
	for _, title := range aggregate.SortedKeys(t) {
		for _, v := range t[title].SortedVariants() {
			rows = append(rows, []any{title, v.VariantTitle, v.Quantity})
		}
	}
	return rows
}

// sheetWriter appends rows to the current sheet and keeps the first error.
type sheetWriter struct {
	f      *excelize.File
	header int
	name   string
	next   int
	err    error
}

func (w *sheetWriter) sheet(name string, header []string) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = fmt.Errorf("create sheet %q: %w", name, err)
		return
	}
	w.name, w.next = name, 1
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	w.row(cells...)
	if w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellStyle(name, "A1", last, w.header); err != nil {
		w.err = fmt.Errorf("style header of %q: %w", name, err)
		return
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = w.f.SetColWidth(name, "A", lastCol, 18)
}

func (w *sheetWriter) row(values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(w.name, cell, &values); err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", w.name, w.next, err)
		return
	}
	w.next++
}
