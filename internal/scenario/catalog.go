// Package scenario holds the scene catalog: the situations a session can
// play out, their roles and languages. The built-in catalog is embedded;
// deployments can load their own YAML file over it.
package scenario

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

//go:embed scenarios.yaml
var builtinCatalog []byte

type Role struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Scenario struct {
	ID             string `yaml:"id"`
	Title          string `yaml:"title"`
	Setting        string `yaml:"setting"`
	TargetLanguage string `yaml:"target_language"`
	NativeLanguage string `yaml:"native_language"`
	Roles          []Role `yaml:"roles"`
}

// Role returns the named role, if the scenario defines it.
func (s *Scenario) Role(name string) (Role, bool) {
	for _, r := range s.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

type Catalog struct {
	scenarios []Scenario
	byID      map[string]*Scenario
}

// LoadBuiltin parses the embedded catalog.
func LoadBuiltin() (*Catalog, error) {
	return parse(builtinCatalog)
}

// LoadFile parses a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario catalog: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario catalog: %w", err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario catalog is empty")
	}

	c := &Catalog{
		scenarios: doc.Scenarios,
		byID:      make(map[string]*Scenario, len(doc.Scenarios)),
	}
	for i := range c.scenarios {
		s := &c.scenarios[i]
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %d: missing id", i)
		}
		if len(s.Roles) < 2 {
			return nil, fmt.Errorf("scenario %q: needs at least 2 roles", s.ID)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("scenario %q: duplicate id", s.ID)
		}
		c.byID[s.ID] = s
	}
	return c, nil
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id string) (*Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	return s, nil
}

// List returns all scenarios in catalog order.
func (c *Catalog) List() []Scenario {
	out := make([]Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}
