package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

type Recipe struct {
	Quantity     *float64     `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit         string       `json:"unit,omitempty" yaml:"unit,omitempty"`
	Ingredients  []Ingredient `json:"ingredients" yaml:"ingredients"`
	Instructions []string     `json:"instructions" yaml:"instructions"`
}

type Ingredient struct {
	Ingredient string   `json:"ingredient" yaml:"ingredient"`
	Quantity   *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit       string   `json:"unit" yaml:"unit"`
	Note       string   `json:"note" yaml:"note"`
	Price      *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Source     string   `json:"source" yaml:"source"`
	Product    bool     `json:"product" yaml:"product"`
}

const (
	colRecipeName   = "shopify recipe name"
	colQuantity     = "qty per recipe"
	colUnit         = "qty unit"
	colInstructions = "recipe instructions"
	colIngredient   = "ingredient"
	colNotes        = "notes"
	colPrice        = "current price"

	subRecipePrefix = "RECIPE:"
)

// packagingRows name the measurement and container rows of a recipe sheet; they are
// not ingredients.
var packagingRows = map[string]struct{}{
	"total":         {},
	"per cup":       {},
	"per tin":       {},
	"full 1-lb":     {},
	"per half pint": {},
	"quart":         {},
	"pint":          {},
	"dozen":         {},
	"half dozen":    {},
	"tin":           {},
	"container":     {},
}

// ImportRecipes turns a recipe sheet into products. The first row is the header. A row
// with a recipe name starts a new product; following rows add instructions and
// ingredients to it until the next name.
func ImportRecipes(rows [][]string) ([]Product, error) {
	if len(rows) == 0 {
		return nil, errors.New("recipe sheet is empty")
	}
	headerIndex := map[string]int{}
	for i, header := range rows[0] {
		headerIndex[normalizeHeader(header)] = i
	}
	nameIdx, ok := headerIndex[colRecipeName]
	if !ok {
		return nil, fmt.Errorf("missing required column: %s", colRecipeName)
	}
	ingredientIdx, ok := headerIndex[colIngredient]
	if !ok {
		return nil, fmt.Errorf("missing required column: %s", colIngredient)
	}
	column := func(name string) int {
		if idx, ok := headerIndex[name]; ok {
			return idx
		}
		return -1
	}
	qtyIdx, unitIdx := column(colQuantity), column(colUnit)
	instrIdx, notesIdx, priceIdx := column(colInstructions), column(colNotes), column(colPrice)

	var products []Product
	var current *Product
	for _, row := range rows[1:] {
		if name := cellValue(row, nameIdx); name != "" {
			if current != nil {
				products = append(products, *current)
			}
			current = &Product{
				Title: name,
				Recipe: &Recipe{
					Quantity:     parseAmount(cellValue(row, qtyIdx)),
					Unit:         cellValue(row, unitIdx),
					Ingredients:  []Ingredient{},
					Instructions: []string{},
				},
			}
		}
		if current == nil {
			continue
		}
		if instruction := cellValue(row, instrIdx); instruction != "" {
			current.Recipe.Instructions = append(current.Recipe.Instructions, instruction)
		}

		ingredient := cellValue(row, ingredientIdx)
		if ingredient == "" {
			continue
		}
		lowered := strings.ToLower(ingredient)
		if lowered == "jar" {
			current.Jar = true
			continue
		}
		if _, skip := packagingRows[lowered]; skip {
			continue
		}
		current.Recipe.Ingredients = append(current.Recipe.Ingredients, Ingredient{
			Ingredient: ingredient,
			Quantity:   parseAmount(cellValue(row, qtyIdx)),
			Unit:       cellValue(row, unitIdx),
			Note:       cellValue(row, notesIdx),
			Price:      parseAmount(cellValue(row, priceIdx)),
			Product:    strings.HasPrefix(ingredient, subRecipePrefix),
		})
	}
	if current != nil {
		products = append(products, *current)
	}
	return products, nil
}

// WriteProducts writes one pretty-printed JSON file per product into dir. Products whose
// file already exists are left alone and reported in skipped.
func WriteProducts(dir string, products []Product) (written, skipped []string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create products directory: %w", err)
	}
	for _, p := range products {
		path := filepath.Join(dir, ProductFileName(p.Title))
		if _, statErr := os.Stat(path); statErr == nil {
			skipped = append(skipped, p.Title)
			continue
		}
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return written, skipped, fmt.Errorf("encode product %q: %w", p.Title, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, skipped, fmt.Errorf("write product %q: %w", p.Title, err)
		}
		written = append(written, p.Title)
	}
	return written, skipped, nil
}

func ProductFileName(title string) string {
	name := strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(strings.TrimSpace(title))
	return name + ".json"
}

// ReadRows loads every row of a recipe export. .xls files go through extrame/xls, .csv
// through encoding/csv and anything else is opened as an xlsx workbook.
func ReadRows(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("csv file is empty")
		}
		return rows, nil
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows := workbook.ReadAllCells(100000)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseAmount(value string) *float64 {
	value = strings.TrimPrefix(strings.TrimSpace(value), "$")
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &f
}
