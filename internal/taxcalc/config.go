package taxcalc

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultRegimes returns illustrative tables for both regimes with a 4% cess
// and a 50,000 standard deduction under the old regime.
func DefaultRegimes() Regimes {
	return Regimes{
		CessRate: decimal.RequireFromString("0.04"),
		Old: RegimeRules{
			StandardDeduction: decimal.NewFromInt(50000),
			Slabs: SlabTable{
				{Lower: decimal.Zero, Upper: Bound(250000), Rate: decimal.Zero},
				{Lower: decimal.NewFromInt(250000), Upper: Bound(500000), Rate: decimal.RequireFromString("0.05")},
				{Lower: decimal.NewFromInt(500000), Upper: Bound(1000000), Rate: decimal.RequireFromString("0.20")},
				{Lower: decimal.NewFromInt(1000000), Rate: decimal.RequireFromString("0.30")},
			},
		},
		New: RegimeRules{
			Slabs: SlabTable{
				{Lower: decimal.Zero, Upper: Bound(300000), Rate: decimal.Zero},
				{Lower: decimal.NewFromInt(300000), Upper: Bound(600000), Rate: decimal.RequireFromString("0.05")},
				{Lower: decimal.NewFromInt(600000), Upper: Bound(900000), Rate: decimal.RequireFromString("0.10")},
				{Lower: decimal.NewFromInt(900000), Upper: Bound(1200000), Rate: decimal.RequireFromString("0.15")},
				{Lower: decimal.NewFromInt(1200000), Upper: Bound(1500000), Rate: decimal.RequireFromString("0.20")},
				{Lower: decimal.NewFromInt(1500000), Rate: decimal.RequireFromString("0.30")},
			},
		},
	}
}

// LoadRegimes reads regime tables from a YAML file with a top-level
// "regimes" key. The file replaces the defaults wholesale.
func LoadRegimes(path string) (Regimes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Regimes{}, eris.Wrapf(err, "taxcalc: read regimes %s", path)
	}
	return ParseRegimes(data)
}

// ParseRegimes decodes and validates a regimes YAML document.
func ParseRegimes(data []byte) (Regimes, error) {
	var wrapper struct {
		Regimes Regimes `yaml:"regimes"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Regimes{}, eris.Wrap(err, "taxcalc: parse regimes")
	}
	if err := wrapper.Regimes.Validate(); err != nil {
		return Regimes{}, err
	}
	return wrapper.Regimes, nil
}
