package verifier

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tolerance is the per-category allowance for assertion 7: some categories
// (large numbered series where entries differ only by a sequence number)
// are inherently hard to discriminate semantically, and the verifier
// would otherwise fail on noise it cannot fix.
type Tolerance struct {
	MissAllowed bool   `yaml:"miss_allowed"`
	Reason      string `yaml:"reason"`
}

// CategoryTolerance maps a file's category (its parent directory name, by
// convention) to the tolerance applied during per-file searchability
// checks. The zero value has every category strict (MissAllowed=false).
type CategoryTolerance map[string]Tolerance

// For returns the tolerance for category, or the strict default if none
// was declared.
func (c CategoryTolerance) For(category string) Tolerance {
	if t, ok := c[category]; ok {
		return t
	}
	return Tolerance{}
}

// String renders the map deterministically for inclusion in a report.
func (c CategoryTolerance) String() string {
	if len(c) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		t := c[k]
		parts = append(parts, fmt.Sprintf("%s(miss_allowed=%v, %s)", k, t.MissAllowed, t.Reason))
	}
	return strings.Join(parts, "; ")
}

// LoadCategoryTolerance reads a YAML file of the shape:
//
//	categories:
//	  invoices-2019-series:
//	    miss_allowed: true
//	    reason: "sequential invoice numbers are semantically indistinguishable"
//
// A missing path is not an error: it resolves to the empty, all-strict
// tolerance, since the searchability assertion is meaningful without any
// declared exceptions.
func LoadCategoryTolerance(path string) (CategoryTolerance, error) {
	if path == "" {
		return CategoryTolerance{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CategoryTolerance{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load category tolerance: %w", err)
	}
	var doc struct {
		Categories CategoryTolerance `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse category tolerance %s: %w", path, err)
	}
	if doc.Categories == nil {
		doc.Categories = CategoryTolerance{}
	}
	return doc.Categories, nil
}
