package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// Config holds the heuristic price table and the budget margins.
type Config struct {
	UnitPrices     map[string]float64
	DefaultPrice   float64
	MaterialMarkup float64
	Margins        entity.MarginConfig
}

// DefaultConfig returns the compiled-in table.
func DefaultConfig() Config {
	return Config{
		UnitPrices: map[string]float64{
			"m2": 25, "m3": 45, "m": 18, "ml": 18,
			"ud": 60, "u": 60, "kg": 3, "h": 28,
			"pa": 150, "l": 6, "t": 40,
		},
		DefaultPrice:   50,
		MaterialMarkup: 1.4,
		Margins:        entity.DefaultMargins(),
	}
}

// file layout; every field is optional and overrides the default
type fileConfig struct {
	UnitPrices     map[string]float64 `yaml:"unit_prices"`
	DefaultPrice   *float64           `yaml:"default_price"`
	MaterialMarkup *float64           `yaml:"material_markup"`
	Margins        struct {
		OverheadRate *float64 `yaml:"overhead_rate"`
		ProfitRate   *float64 `yaml:"profit_rate"`
		TaxRate      *float64 `yaml:"tax_rate"`
	} `yaml:"margins"`
}

// LoadConfig reads a YAML pricing file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read pricing config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse pricing config: %w", err)
	}
	for unit, price := range fc.UnitPrices {
		cfg.UnitPrices[constants.NormalizeUnit(unit)] = price
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cfg.DefaultPrice, fc.DefaultPrice)
	set(&cfg.MaterialMarkup, fc.MaterialMarkup)
	set(&cfg.Margins.OverheadRate, fc.Margins.OverheadRate)
	set(&cfg.Margins.ProfitRate, fc.Margins.ProfitRate)
	set(&cfg.Margins.TaxRate, fc.Margins.TaxRate)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	for unit, p := range c.UnitPrices {
		if p < 0 {
			return fmt.Errorf("pricing config: negative price for unit %q", unit)
		}
	}
	if c.DefaultPrice < 0 {
		return fmt.Errorf("pricing config: negative default_price")
	}
	if c.MaterialMarkup < 1 {
		return fmt.Errorf("pricing config: material_markup must be >= 1")
	}
	m := c.Margins
	if m.OverheadRate < 0 || m.ProfitRate < 0 || m.TaxRate < 0 {
		return fmt.Errorf("pricing config: margin rates must be >= 0")
	}
	return nil
}

// EstimatePrice looks up the heuristic unit price, falling back to DefaultPrice.
func (c Config) EstimatePrice(unit string) float64 {
	if p, ok := c.UnitPrices[constants.NormalizeUnit(unit)]; ok {
		return p
	}
	return c.DefaultPrice
}
