// Package badges holds the declarative badge catalog and the evaluator that
// grants achievements from it.
package badges

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Tier is a badge level inside a family.
type Tier string

// Tiers from lowest to highest.
const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

var tierOrder = []Tier{TierBronze, TierSilver, TierGold}

// Rank orders tiers; unknown tiers rank 0.
func (t Tier) Rank() int {
	for i, x := range tierOrder {
		if x == t {
			return i + 1
		}
	}
	return 0
}

// Label returns the capitalised tier name.
func (t Tier) Label() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Direction tells whether a metric must reach or stay under a threshold.
type Direction string

// Directions.
const (
	AtLeast Direction = "at_least"
	AtMost  Direction = "at_most"
)

// Met reports whether value satisfies threshold in direction d.
func (d Direction) Met(value, threshold float64) bool {
	if d == AtMost {
		return value <= threshold
	}
	return value >= threshold
}

var categories = map[string]bool{
	"outcome": true, "quality": true, "efficiency": true, "reliability": true, "specialty": true,
}

// Badge is one catalog entry.
type Badge struct {
	ID          string    `json:"id"`
	Family      string    `json:"family"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tier        Tier      `json:"tier"`
	Metric      string    `json:"metric"`
	Direction   Direction `json:"direction"`
	Threshold   float64   `json:"threshold"`
	MinSample   int       `json:"min_sample"`
	Points      int64     `json:"points"`
}

// BadgeID returns the catalog id of family at tier.
func BadgeID(family string, tier Tier) string {
	return family + "." + string(tier)
}

// Family is a group of tiered badges sharing one metric.
type Family struct {
	Name   string
	Badges []Badge // bronze, silver, gold
}

type familySpec struct {
	Family      string           `yaml:"family"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Category    string           `yaml:"category"`
	Metric      string           `yaml:"metric"`
	Direction   Direction        `yaml:"direction"`
	MinSample   int              `yaml:"min_sample"`
	Thresholds  map[Tier]float64 `yaml:"thresholds"`
}

type catalogSpec struct {
	TierPoints map[Tier]int64 `yaml:"tier_points"`
	Families   []familySpec   `yaml:"families"`
}

// Catalog is the read-only badge rule table.
type Catalog struct {
	families []Family
	byID     map[string]Badge
}

// DefaultCatalog returns the embedded stock catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from path, or the embedded default when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var spec catalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(spec.Families) == 0 {
		return nil, fmt.Errorf("%w: no families", ErrInvalidCatalog)
	}
	for _, t := range tierOrder {
		if spec.TierPoints[t] < 0 {
			return nil, fmt.Errorf("%w: negative points for tier %s", ErrInvalidCatalog, t)
		}
	}

	c := &Catalog{byID: make(map[string]Badge)}
	seen := make(map[string]bool)
	for _, f := range spec.Families {
		if err := validateFamily(f); err != nil {
			return nil, err
		}
		if seen[f.Family] {
			return nil, fmt.Errorf("%w: duplicate family %q", ErrInvalidCatalog, f.Family)
		}
		seen[f.Family] = true

		fam := Family{Name: f.Family}
		for _, t := range tierOrder {
			b := Badge{
				ID:          BadgeID(f.Family, t),
				Family:      f.Family,
				Name:        fmt.Sprintf("%s (%s)", f.Name, t.Label()),
				Description: f.Description,
				Category:    f.Category,
				Tier:        t,
				Metric:      f.Metric,
				Direction:   f.Direction,
				Threshold:   f.Thresholds[t],
				MinSample:   f.MinSample,
				Points:      spec.TierPoints[t],
			}
			fam.Badges = append(fam.Badges, b)
			c.byID[b.ID] = b
		}
		c.families = append(c.families, fam)
	}
	return c, nil
}

func validateFamily(f familySpec) error {
	switch {
	case f.Family == "":
		return fmt.Errorf("%w: family without name", ErrInvalidCatalog)
	case !categories[f.Category]:
		return fmt.Errorf("%w: family %q has unknown category %q", ErrInvalidCatalog, f.Family, f.Category)
	case f.Direction != AtLeast && f.Direction != AtMost:
		return fmt.Errorf("%w: family %q has unknown direction %q", ErrInvalidCatalog, f.Family, f.Direction)
	case !KnownMetric(f.Metric):
		return fmt.Errorf("%w: family %q has unknown metric %q", ErrInvalidCatalog, f.Family, f.Metric)
	case f.MinSample < 0:
		return fmt.Errorf("%w: family %q has negative min_sample", ErrInvalidCatalog, f.Family)
	}
	for _, t := range tierOrder {
		if _, ok := f.Thresholds[t]; !ok {
			return fmt.Errorf("%w: family %q misses tier %s", ErrInvalidCatalog, f.Family, t)
		}
	}
	if len(f.Thresholds) != len(tierOrder) {
		return fmt.Errorf("%w: family %q has unknown tiers", ErrInvalidCatalog, f.Family)
	}
	for i := 1; i < len(tierOrder); i++ {
		lo, hi := f.Thresholds[tierOrder[i-1]], f.Thresholds[tierOrder[i]]
		if (f.Direction == AtLeast && hi <= lo) || (f.Direction == AtMost && hi >= lo) {
			return fmt.Errorf("%w: family %q thresholds are not strictly %s", ErrInvalidCatalog, f.Family, orderWord(f.Direction))
		}
	}
	return nil
}

func orderWord(d Direction) string {
	if d == AtMost {
		return "decreasing"
	}
	return "increasing"
}

// Families returns the families in catalog order.
func (c *Catalog) Families() []Family {
	return c.families
}

// Badge looks up a badge by id.
func (c *Catalog) Badge(id string) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// Badges returns every badge ordered by family order then tier.
func (c *Catalog) Badges() []Badge {
	out := make([]Badge, 0, len(c.byID))
	for _, f := range c.families {
		out = append(out, f.Badges...)
	}
	return out
}

// FamilyNames returns the family names sorted alphabetically.
func (c *Catalog) FamilyNames() []string {
	names := make([]string, 0, len(c.families))
	for _, f := range c.families {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
