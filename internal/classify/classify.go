// Package classify derives structured tags (province, sector) from free text.
package classify

import (
	"strings"
	"unicode"
)

type province struct {
	code  string
	names []string
}

// provinces lists every Canadian province and territory with the spellings
// sources commonly use.
var provinces = []province{
	{"AB", []string{"alberta"}},
	{"BC", []string{"british columbia"}},
	{"MB", []string{"manitoba"}},
	{"NB", []string{"new brunswick"}},
	{"NL", []string{"newfoundland and labrador", "newfoundland", "labrador"}},
	{"NS", []string{"nova scotia"}},
	{"NT", []string{"northwest territories"}},
	{"NU", []string{"nunavut"}},
	{"ON", []string{"ontario"}},
	{"PE", []string{"prince edward island", "pei"}},
	{"QC", []string{"quebec", "québec"}},
	{"SK", []string{"saskatchewan"}},
	{"YT", []string{"yukon"}},
}

// Province returns the two-letter code found in location, or "".
// Full names win over abbreviations so "Calgary, Alberta" and "Calgary, AB"
// both resolve to AB.
func Province(location string) string {
	words := normalize(location)
	if words == "" {
		return ""
	}
	padded := " " + words + " "
	for _, p := range provinces {
		for _, n := range p.names {
			if strings.Contains(padded, " "+n+" ") {
				return p.code
			}
		}
	}
	fields := strings.Fields(words)
	if i := trailingCode(fields); i >= 0 {
		return strings.ToUpper(fields[i])
	}
	return ""
}

// trailingCode returns the index of a province abbreviation in the last
// position (ignoring a trailing "canada"), or -1. Abbreviations elsewhere
// are too ambiguous to trust ("on", "pe").
func trailingCode(fields []string) int {
	i := len(fields) - 1
	if i > 0 && fields[i] == "canada" {
		i--
	}
	if i < 0 || len(fields[i]) != 2 || !IsProvinceCode(strings.ToUpper(fields[i])) {
		return -1
	}
	return i
}

// ProvinceName returns the canonical lower-case name for a code, or "".
func ProvinceName(code string) string {
	code = strings.ToUpper(code)
	for _, p := range provinces {
		if p.code == code {
			return p.names[0]
		}
	}
	return ""
}

// IsProvinceCode reports whether code is a known two-letter code.
func IsProvinceCode(code string) bool {
	for _, p := range provinces {
		if p.code == code {
			return true
		}
	}
	return false
}

// ExpandProvince rewrites province abbreviations in a location to full names,
// e.g. "Calgary, AB" becomes "calgary alberta". The result is normalized.
func ExpandProvince(location string) string {
	fields := strings.Fields(normalize(location))
	if i := trailingCode(fields); i >= 0 {
		fields[i] = ProvinceName(fields[i])
	}
	return strings.Join(fields, " ")
}

type sector struct {
	name     string
	keywords []string
}

var sectors = []sector{
	{"mining", []string{"mining", "mine", "mineral", "exploration", "geology", "geologist", "metallurgy", "ore", "copper", "gold", "silver", "iron", "coal", "potash", "diamond"}},
	{"oil_gas", []string{"oil", "gas", "petroleum", "drilling", "pipeline", "refinery", "lng", "upstream", "downstream", "reservoir", "production engineer", "completions", "fracking"}},
	{"forestry", []string{"forestry", "forest", "lumber", "timber", "pulp", "paper", "mill", "logging", "sawmill", "wood products", "silviculture"}},
	{"renewable", []string{"renewable", "solar", "wind", "hydro", "hydroelectric", "geothermal", "biomass", "green energy", "clean energy", "sustainability"}},
	{"utilities", []string{"utility", "utilities", "power", "electricity", "electric", "transmission", "distribution", "grid", "energy"}},
	{"agriculture", []string{"agriculture", "farming", "farm", "agricultural", "agribusiness", "crop", "livestock", "dairy", "grain"}},
}

// Sectors returns the known sector names.
func Sectors() []string {
	names := make([]string, len(sectors))
	for i, s := range sectors {
		names[i] = s.name
	}
	return names
}

// Sector picks the sector whose keywords appear most often across the given
// texts, matching whole words only. Ties go to the earlier sector; "" if none hit.
func Sector(texts ...string) string {
	padded := " " + normalize(strings.Join(texts, " ")) + " "
	if strings.TrimSpace(padded) == "" {
		return ""
	}

	best, bestHits := "", 0
	for _, s := range sectors {
		hits := 0
		for _, kw := range s.keywords {
			if strings.Contains(padded, " "+kw+" ") {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = s.name, hits
		}
	}
	return best
}

// normalize lower-cases s, turns punctuation into spaces and collapses whitespace.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
