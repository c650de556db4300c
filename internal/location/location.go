package location

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	Pickup   Kind = "pickup"
	Delivery Kind = "delivery"
)

// Location is either a pickup site with a street address or a delivery route
// identified only by its city.
type Location struct {
	Kind     Kind   `yaml:"type" json:"type"`
	Name     string `yaml:"name" json:"name"`
	Address1 string `yaml:"address1,omitempty" json:"address1,omitempty"`
	Address2 string `yaml:"address2,omitempty" json:"address2,omitempty"`
	City     string `yaml:"city" json:"city"`
	Zip      string `yaml:"zip,omitempty" json:"zip,omitempty"`
}

// MissingAddress stands in for the address of a location that is neither a delivery
// context nor a known pickup site.
const MissingAddress = "This location is missing an address."

func (l Location) HasStreetAddress() bool {
	return l.Kind == Pickup && l.Address1 != "" && l.Zip != ""
}

func (l Location) IsDelivery() bool {
	return l.Kind == Delivery
}

// IsDeliveryName applies the name heuristic used by the label and delivery views: any
// location whose name mentions "delivery" is a delivery context, listed or not.
func IsDeliveryName(name string) bool {
	return strings.Contains(strings.ToLower(name), "delivery")
}

// Table is an ordered list of known locations. Names match exactly.
type Table []Location

var DefaultTable = Table{
	{Kind: Pickup, Name: "Broomfield Curbside", Address1: "1480 W Midway Blvd", City: "Broomfield", Zip: "80020"},
	{Kind: Pickup, Name: "Broomfield Store Pick Up", Address1: "1480 W Midway Blvd", City: "Broomfield", Zip: "80020"},
	{Kind: Pickup, Name: "Louisville Family Center", Address1: "924 Main Street", City: "Louisville", Zip: "80027"},
	{Kind: Pickup, Name: "Boulder Fermentation pick up", Address1: "2510 47th St", City: "Boulder", Zip: "80301"},
	{Kind: Pickup, Name: "Boulder Savory Spice", Address1: "2041 Broadway #1", City: "Boulder", Zip: "80302"},
	{Kind: Delivery, Name: "Louisville Home Delivery", City: "Louisville"},
	{Kind: Delivery, Name: "Boulder Home Delivery", City: "Boulder"},
	{Kind: Delivery, Name: "Lafayette Home Delivery", City: "Lafayette"},
	{Kind: Delivery, Name: "Longmont Home Delivery", City: "Longmont"},
	{Kind: Delivery, Name: "Broomfield Home Delivery", City: "Broomfield"},
}

func (t Table) Lookup(name string) (Location, bool) {
	for _, loc := range t {
		if loc.Name == name {
			return loc, true
		}
	}
	return Location{}, false
}

// Resolve returns the location named by the first tag, in tag order, that is in the table.
func (t Table) Resolve(tags []string) (Location, bool) {
	for _, tag := range tags {
		if loc, ok := t.Lookup(tag); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// IsDeliveryContext combines table membership with the name heuristic.
func (t Table) IsDeliveryContext(name string) bool {
	if loc, ok := t.Lookup(name); ok && loc.IsDelivery() {
		return true
	}
	return IsDeliveryName(name)
}

type tableFile struct {
	Locations []Location `yaml:"locations"`
}

// LoadTable reads a YAML location table. A missing file yields DefaultTable.
func LoadTable(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultTable, nil
		}
		return nil, fmt.Errorf("read location table: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse location table: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Locations))
	for i, loc := range file.Locations {
		if strings.TrimSpace(loc.Name) == "" {
			return nil, fmt.Errorf("location %d: name is required", i)
		}
		if _, dup := seen[loc.Name]; dup {
			return nil, fmt.Errorf("location %q listed twice", loc.Name)
		}
		seen[loc.Name] = struct{}{}
		switch loc.Kind {
		case Pickup:
			if loc.Address1 == "" || loc.Zip == "" || loc.City == "" {
				return nil, fmt.Errorf("pickup location %q needs address1, city and zip", loc.Name)
			}
		case Delivery:
			if loc.City == "" {
				return nil, fmt.Errorf("delivery location %q needs a city", loc.Name)
			}
		default:
			return nil, fmt.Errorf("location %q has unknown type %q", loc.Name, loc.Kind)
		}
	}
	return Table(file.Locations), nil
}
