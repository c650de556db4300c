// Package catalog holds the product data printed on item labels: an optional label
// title per product, per-variant heating instructions, and the shared defaults used
// when a product has none.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackInstruction is printed when neither the product nor the defaults table
// knows the variant.
const FallbackInstruction = "Heat gently in a saucepan and enjoy."

const defaultKey = "default"

var DefaultInstructions = map[string]string{
	defaultKey:              FallbackInstruction,
	"Frozen Tin":            "Defrost. Bake at 350 for 15 min or until warm.",
	"One Tin":               "Bake at 350 for 15 min or until warm.",
	"Four Cupcakes":         "Enjoy within 2 days or freeze.",
	"Four Muffins":          "Enjoy within 2 days or freeze.",
	"Half Dozen":            "Enjoy within 2 days or freeze.",
	"One Dozen":             "Enjoy within 2 days or freeze.",
	"Dozen":                 "Enjoy within 2 days or freeze.",
	"Frozen Pint":           "Defrost or run under warm water. Slide out. Heat gently in a saucepan and enjoy.",
	"Frozen Half Pint":      "Defrost and enjoy.",
	"Frozen 24oz":           "Defrost or run under warm water. Slide out. Heat gently in a saucepan and enjoy.",
	"Four Burgers":          "Heat in an oiled skillet or heat at 350 in the oven.",
	"4 Burgers":             "Heat in an oiled skillet or heat at 350 in the oven.",
	"Frozen Pint / Feta":    "Defrost or run under warm water. Slide out. Heat gently in a saucepan and enjoy.",
	"Frozen CHICKEN":        "Defrost or run under warm water & slide out. Heat gently in a saucepan.",
	"Frozen Burgers 4-Pack": "Defrost and heat in an oiled skillet.",
	"Frozen Four Burgers":   "Defrost and heat in an oiled skillet.",
}

type Label struct {
	Title        string            `yaml:"title,omitempty" json:"title,omitempty"`
	Instructions map[string]string `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

type Product struct {
	Title  string  `yaml:"title" json:"title"`
	Label  *Label  `yaml:"label,omitempty" json:"label,omitempty"`
	Jar    bool    `yaml:"jar,omitempty" json:"jar"`
	Recipe *Recipe `yaml:"recipe,omitempty" json:"recipe,omitempty"`
}

type Catalog struct {
	Products            map[string]Product
	InstructionDefaults map[string]string
}

func New(products ...Product) *Catalog {
	c := &Catalog{
		Products:            make(map[string]Product, len(products)),
		InstructionDefaults: copyDefaults(DefaultInstructions),
	}
	for _, p := range products {
		c.Products[p.Title] = p
	}
	return c
}

func copyDefaults(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// LabelTitle is the product's label title override, or title itself.
func (c *Catalog) LabelTitle(title string) string {
	if p, ok := c.Products[title]; ok && p.Label != nil && strings.TrimSpace(p.Label.Title) != "" {
		return p.Label.Title
	}
	return title
}

// Instructions walks product variant text, product default, shared variant
// default, shared default, and finally FallbackInstruction.
func (c *Catalog) Instructions(title, variant string) string {
	if p, ok := c.Products[title]; ok && p.Label != nil {
		if s := p.Label.Instructions[variant]; s != "" {
			return s
		}
		if s := p.Label.Instructions[defaultKey]; s != "" {
			return s
		}
	}
	if s := c.InstructionDefaults[variant]; s != "" {
		return s
	}
	if s := c.InstructionDefaults[defaultKey]; s != "" {
		return s
	}
	return FallbackInstruction
}

// Titles lists product titles alphabetically.
func (c *Catalog) Titles() []string {
	out := make([]string, 0, len(c.Products))
	for title := range c.Products {
		out = append(out, title)
	}
	sort.Strings(out)
	return out
}

type catalogFile struct {
	InstructionDefaults map[string]string `yaml:"instructionDefaults"`
	Products            []Product         `yaml:"products"`
}

// Load builds a catalog from the product JSON files in productsDir (as written by the
// recipe importer) and then applies catalogPath, a YAML file whose entries override
// products by title and extend the instruction defaults. Missing paths are skipped.
func Load(catalogPath, productsDir string) (*Catalog, error) {
	c := New()

	if productsDir != "" {
		products, err := readProductDir(productsDir)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			c.Products[p.Title] = p
		}
	}

	if catalogPath == "" {
		return c, nil
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", catalogPath, err)
	}
	for k, v := range file.InstructionDefaults {
		c.InstructionDefaults[k] = v
	}
	for i, p := range file.Products {
		if strings.TrimSpace(p.Title) == "" {
			return nil, fmt.Errorf("parse catalog %s: product %d has no title", catalogPath, i)
		}
		if existing, ok := c.Products[p.Title]; ok && p.Recipe == nil {
			p.Recipe = existing.Recipe
			p.Jar = p.Jar || existing.Jar
		}
		c.Products[p.Title] = p
	}
	return c, nil
}

func readProductDir(dir string) ([]Product, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read products directory: %w", err)
	}
	var products []Product
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read product %s: %w", path, err)
		}
		var p Product
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse product %s: %w", path, err)
		}
		if strings.TrimSpace(p.Title) == "" {
			return nil, fmt.Errorf("parse product %s: title is required", path)
		}
		products = append(products, p)
	}
	return products, nil
}
