// Package countries provides the embedded ISO 3166-1 alpha-2 country table
// used to validate trip codes and resolve display names and continents.
package countries

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorldCount is the fixed denominator used for the "percent of the world
// visited" statistic. It is intentionally a constant, not the size of the
// embedded table.
const WorldCount = 195

//go:embed countries.yaml
var countriesYAML []byte

// Country describes one entry of the embedded table.
type Country struct {
	Name      string `yaml:"name"`
	Continent string `yaml:"continent"`
}

type table struct {
	Countries map[string]Country `yaml:"countries"`
}

var countryTable map[string]Country

func init() {
	var t table
	if err := yaml.Unmarshal(countriesYAML, &t); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded countries.yaml: " + err.Error())
	}
	countryTable = t.Countries
}

// Lookup returns the country for an ISO 3166-1 alpha-2 code.
// Codes are matched case-insensitively.
func Lookup(code string) (Country, bool) {
	c, ok := countryTable[strings.ToUpper(code)]
	return c, ok
}

// ValidCode reports whether the code has the shape of an alpha-2 country code.
// Unknown-but-well-formed codes are accepted so trips are not limited to the
// embedded table.
func ValidCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// WorldPercent computes the rounded percentage of the world visited for the
// given number of countries, against the fixed WorldCount denominator.
func WorldPercent(visited int) int {
	if visited <= 0 {
		return 0
	}
	return (visited*100 + WorldCount/2) / WorldCount
}
