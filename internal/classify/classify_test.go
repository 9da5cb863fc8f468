package classify

import "testing"

func TestProvince(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"Calgary, AB", "AB"},
		{"Calgary, Alberta", "AB"},
		{"Fort McMurray, Alberta, Canada", "AB"},
		{"Prince George, British Columbia", "BC"},
		{"Sudbury ON", "ON"},
		{"Montréal, Québec", "QC"},
		{"Remote", ""},
		{"", ""},
		// "on" inside a sentence is only trusted as the trailing token.
		{"Work on site", ""},
	}
	for _, tt := range tests {
		if got := Province(tt.location); got != tt.want {
			t.Errorf("Province(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}

func TestExpandProvince(t *testing.T) {
	if got := ExpandProvince("Calgary, AB"); got != "calgary alberta" {
		t.Errorf("ExpandProvince = %q, want %q", got, "calgary alberta")
	}
	if got := ExpandProvince("Calgary, Alberta"); got != "calgary alberta" {
		t.Errorf("ExpandProvince = %q, want %q", got, "calgary alberta")
	}
}

func TestSector(t *testing.T) {
	tests := []struct {
		texts []string
		want  string
	}{
		{[]string{"Underground Miner", "Gold mine operations in northern Ontario"}, "mining"},
		{[]string{"Drilling Supervisor", "Oil and gas upstream operations"}, "oil_gas"},
		{[]string{"Sawmill Operator"}, "forestry"},
		{[]string{"Solar Technician"}, "renewable"},
		{[]string{"Accountant"}, ""},
		// "core" must not match the "ore" keyword.
		{[]string{"Core Banking Analyst"}, ""},
	}
	for _, tt := range tests {
		if got := Sector(tt.texts...); got != tt.want {
			t.Errorf("Sector(%v) = %q, want %q", tt.texts, got, tt.want)
		}
	}
}
