package lifeevents

import (
	_ "embed"
	"fmt"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Catalog is an ordered, read-only set of presets. It is loaded once at
// startup and shared by every request.
type Catalog struct {
	presets []Preset
	byKey   map[string]int
}

type catalogFile struct {
	Presets []Preset `yaml:"presets"`
}

// NewCatalog validates presets and indexes them by key, keeping their order.
func NewCatalog(presets []Preset) (*Catalog, error) {
	c := &Catalog{
		presets: make([]Preset, 0, len(presets)),
		byKey:   make(map[string]int, len(presets)),
	}
	for _, p := range presets {
		if err := p.compile(); err != nil {
			return nil, fmt.Errorf("NewCatalog: %w", err)
		}
		if _, dup := c.byKey[p.Key]; dup {
			return nil, fmt.Errorf("NewCatalog: duplicate preset key %q", p.Key)
		}
		c.byKey[p.Key] = len(c.presets)
		c.presets = append(c.presets, p)
	}
	if len(c.presets) == 0 {
		return nil, fmt.Errorf("NewCatalog: catalog has no presets")
	}
	return c, nil
}

// ParseCatalog reads a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ParseCatalog: unmarshal yaml: %w", err)
	}
	return NewCatalog(file.Presets)
}

// DefaultCatalog returns the built-in presets.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("lifeevents: built-in catalog is invalid: %v", err))
	}
	return c
}

// List returns the public entries in catalog order.
func (c *Catalog) List() []domain.LifeEventPreset {
	out := make([]domain.LifeEventPreset, len(c.presets))
	for i, p := range c.presets {
		out[i] = p.Info()
	}
	return out
}

// Lookup finds a preset by key.
func (c *Catalog) Lookup(key string) (Preset, error) {
	i, ok := c.byKey[key]
	if !ok {
		return Preset{}, &domain.UnknownPresetError{Key: key}
	}
	return c.presets[i], nil
}

// Len returns the number of presets.
func (c *Catalog) Len() int {
	return len(c.presets)
}

// position returns the catalog index of key, or -1.
func (c *Catalog) position(key string) int {
	if i, ok := c.byKey[key]; ok {
		return i
	}
	return -1
}
