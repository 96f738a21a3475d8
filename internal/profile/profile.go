// Package profile holds the brand table and the expense category order.
//
// The compiled-in defaults describe the four reporting units. A YAML file can
// replace them without rebuilding.
package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

var (
	ErrUnknownBrand   = errors.New("unknown brand")
	ErrInvalidProfile = errors.New("invalid profile")
)

// Brand is one reporting unit and the names it goes by in each snapshot.
type Brand struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	FilePrefix     string `yaml:"file_prefix" json:"filePrefix"`
	HeadcountAlias string `yaml:"headcount_alias" json:"headcountAlias"`
	// RevenueAlias is empty for units without sales of their own.
	RevenueAlias string `yaml:"revenue_alias,omitempty" json:"revenueAlias,omitempty"`
}

// HasRevenue reports whether the revenue table carries a column for b.
func (b Brand) HasRevenue() bool {
	return strings.TrimSpace(b.RevenueAlias) != ""
}

// Profile is the injectable brand table plus category priority.
// Each entry of Categories is a group of aliases sharing one rank.
type Profile struct {
	Brands     []Brand    `yaml:"brands"`
	Categories [][]string `yaml:"categories"`
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Brands: []Brand{
			{ID: "mlb", Name: "MLB", FilePrefix: "mlb", HeadcountAlias: "MLB", RevenueAlias: "MLB"},
			{ID: "mlb-kids", Name: "KIDS", FilePrefix: "kids", HeadcountAlias: "KIDS", RevenueAlias: "KIDS"},
			{ID: "discovery", Name: "DX", FilePrefix: "discovery", HeadcountAlias: "DX", RevenueAlias: "DISCOVERY"},
			{ID: "common", Name: "공통", FilePrefix: "common", HeadcountAlias: "공통"},
		},
		Categories: [][]string{
			{"광고비"},
			{"인건비"},
			{"복리후생비"},
			{"출장비"},
			{"수주회"},
			{"차량유지비"},
			{"임차료"},
			{"감가상각비", "감가상각"},
			{"세금과공과"},
			{"기타"},
		},
	}
}

// Load reads a profile from path. An empty path yields Default. Sections
// missing from the file fall back to the defaults.
func Load(path string) (Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML profile data and validates it.
func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	def := Default()
	if len(p.Brands) == 0 {
		p.Brands = def.Brands
	}
	if len(p.Categories) == 0 {
		p.Categories = def.Categories
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks ids are unique and every brand has a name, a file prefix
// and a headcount alias. The name must match the brand column of the cost
// records.
func (p Profile) Validate() error {
	var problems []string
	seen := make(map[string]bool, len(p.Brands))
	for i, b := range p.Brands {
		id := strings.TrimSpace(b.ID)
		switch {
		case id == "":
			problems = append(problems, fmt.Sprintf("brand %d: empty id", i))
		case seen[id]:
			problems = append(problems, fmt.Sprintf("brand %q: duplicate id", id))
		}
		seen[id] = true
		if strings.TrimSpace(b.Name) == "" {
			problems = append(problems, fmt.Sprintf("brand %q: empty name", id))
		}
		if strings.TrimSpace(b.FilePrefix) == "" {
			problems = append(problems, fmt.Sprintf("brand %q: empty file_prefix", id))
		}
		if strings.TrimSpace(b.HeadcountAlias) == "" {
			problems = append(problems, fmt.Sprintf("brand %q: empty headcount_alias", id))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return nil
}

// Lookup finds a brand by id.
func (p Profile) Lookup(id string) (Brand, error) {
	id = strings.TrimSpace(id)
	for _, b := range p.Brands {
		if b.ID == id {
			return b, nil
		}
	}
	return Brand{}, fmt.Errorf("%w: %q", ErrUnknownBrand, id)
}
