package labels

// Sheet geometry in PDF points. The numbers match the adhesive label stock: a
// 612x790 page holding 3 columns by 10 rows.
const (
	PageWidth  = 612.0
	PageHeight = 790.0

	MarginTop    = 35.0
	MarginBottom = 35.0
	MarginLeft   = 10.0
	MarginRight  = 10.0

	ContentWidth  = PageWidth - MarginLeft - MarginRight
	ContentHeight = PageHeight - MarginTop - MarginBottom

	Columns = 3
	Rows    = 10
	PerPage = Columns * Rows

	SpacerX = 5.0
	SpacerY = 1.0

	LabelWidth  = (ContentWidth - SpacerX*(Columns-1)) / Columns
	LabelHeight = (ContentHeight - SpacerY*(Rows-1)) / Rows

	LabelPadding = 5.0
)

// Position maps a running slot index to its page and grid cell.
func Position(index int) (page, row, column int) {
	page = index / PerPage
	onPage := index % PerPage
	return page, onPage / Columns, onPage % Columns
}

// ColumnX is the left edge of a column. Columns are placed from the left margin,
// each one label width plus one spacer to the right of the previous.
func ColumnX(column int) float64 {
	switch column {
	case 0:
		return MarginLeft
	case 1:
		return MarginLeft + LabelWidth + SpacerX
	default:
		return MarginLeft + LabelWidth*2 + SpacerX*2
	}
}

func RowY(row int) float64 {
	r := float64(row)
	return MarginTop + r*LabelHeight + r*SpacerY
}
