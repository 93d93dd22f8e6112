package classify

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Rule maps identifier substrings to a classification bucket and CRF weight.
// Rules are evaluated in order; the first match wins.
type Rule struct {
	Contains []string         `yaml:"contains"`
	Class    models.UnitClass `yaml:"class"`
	Weight   int              `yaml:"weight"`
}

// Fallback is applied when no rule matches an identifier.
type Fallback struct {
	Class  models.UnitClass `yaml:"class"`
	Weight int              `yaml:"weight"`
}

// Table resolves free-text unit identifiers into a class bucket and a force
// weight. One table serves the status classifier, the CRF calculator and the
// concurrency tracker, so the weight and bucket assignments cannot drift apart.
type Table struct {
	rules    []Rule
	fallback Fallback
}

// tableFile is the YAML root for an external rules file.
type tableFile struct {
	Rules    []Rule    `yaml:"rules"`
	Fallback *Fallback `yaml:"fallback"`
}

// DefaultTable returns the compiled-in classification rules: engine and quint
// apparatus weigh 4, battalion command 3, everything else 2.
func DefaultTable() *Table {
	return &Table{
		rules: []Rule{
			{Contains: []string{"QNT", "ENG"}, Class: models.ClassEngine, Weight: 4},
			{Contains: []string{"BAT", "BT"}, Class: models.ClassBattalion, Weight: 3},
			{Contains: []string{"LAD", "TRK", "TWR"}, Class: models.ClassLadder, Weight: 2},
			{Contains: []string{"MED", "AMB"}, Class: models.ClassMedic, Weight: 2},
		},
		fallback: Fallback{Class: models.ClassOther, Weight: 2},
	}
}

// LoadTable reads a rules file from path. An empty path or a missing file
// yields the default table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultTable(), nil
		}
		return nil, err
	}
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Rules) == 0 {
		return DefaultTable(), nil
	}
	table := &Table{rules: file.Rules, fallback: Fallback{Class: models.ClassOther, Weight: 2}}
	if file.Fallback != nil {
		table.fallback = *file.Fallback
	}
	return table, nil
}

// Classify resolves a unit identifier to its class bucket and force weight.
func (t *Table) Classify(unitID string) (models.UnitClass, int) {
	id := strings.ToUpper(strings.TrimSpace(unitID))
	for _, rule := range t.rules {
		for _, fragment := range rule.Contains {
			if fragment != "" && strings.Contains(id, strings.ToUpper(fragment)) {
				return rule.Class, rule.Weight
			}
		}
	}
	return t.fallback.Class, t.fallback.Weight
}

// Weight returns only the force weight for a unit identifier.
func (t *Table) Weight(unitID string) int {
	_, w := t.Classify(unitID)
	return w
}
