package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	ShopAPIBaseURL string
	FetchTimeout   time.Duration
	CatalogPath    string
	ProductsDir    string
	LocationsPath  string
	OutputDir      string
	PDFCPUBin      string
	LabelLogoPath  string
	LabelFooter    string
	DocumentAuthor string
	BestByWeekday  string
	ExtrasName     string
	DeliveryState  string
	LogMode        string
	LogRedaction   bool
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:           envOrDefault("ORDERPREP_ADDR", ":8080"),
		ShopAPIBaseURL: strings.TrimRight(envOrDefault("SHOP_API_BASE_URL", "http://localhost:3001"), "/"),
		FetchTimeout:   durationOrDefault("SHOP_API_TIMEOUT", 0),
		CatalogPath:    envOrDefault("CATALOG_PATH", "catalog.yaml"),
		ProductsDir:    envOrDefault("PRODUCTS_DIR", "products"),
		LocationsPath:  strings.TrimSpace(os.Getenv("LOCATIONS_PATH")),
		OutputDir:      envOrDefault("OUTPUT_DIR", "out"),
		PDFCPUBin:      envOrDefault("PDFCPU_BIN", "pdfcpu"),
		LabelLogoPath:  strings.TrimSpace(os.Getenv("LABEL_LOGO_PATH")),
		LabelFooter:    envOrDefault("LABEL_FOOTER", "backtobasicskitchen.com"),
		DocumentAuthor: envOrDefault("DOCUMENT_AUTHOR", "Back to Basics Kitchen"),
		BestByWeekday:  envOrDefault("BEST_BY_WEEKDAY", "Tuesday"),
		ExtrasName:     envOrDefault("EXTRAS_CUSTOMER_NAME", "extras extras"),
		DeliveryState:  envOrDefault("DELIVERY_STATE", "CO"),
		LogMode:        envOrDefault("LOG_MODE", "dev"),
		LogRedaction:   boolOrDefault("LOG_REDACTION_ENABLED", true),
	}
}

// DotEnvDefaults are the values written by `orderprep setup`.
func DotEnvDefaults() map[string]string {
	return map[string]string{
		"ORDERPREP_ADDR":        ":8080",
		"SHOP_API_BASE_URL":     "http://localhost:3001",
		"CATALOG_PATH":          "catalog.yaml",
		"PRODUCTS_DIR":          "products",
		"OUTPUT_DIR":            "out",
		"PDFCPU_BIN":            "pdfcpu",
		"LABEL_FOOTER":          "backtobasicskitchen.com",
		"DOCUMENT_AUTHOR":       "Back to Basics Kitchen",
		"BEST_BY_WEEKDAY":       "Tuesday",
		"EXTRAS_CUSTOMER_NAME":  "extras extras",
		"DELIVERY_STATE":        "CO",
		"LOG_MODE":              "dev",
		"LOG_REDACTION_ENABLED": "true",
	}
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(name string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

// A zero timeout means the fetch runs until it completes or fails.
func durationOrDefault(name string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
