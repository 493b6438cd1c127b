// Package assets lists the prefabs the visualization backend can spawn.
package assets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrUnknownAsset is returned by Lookup for a model not in the catalog.
var ErrUnknownAsset = errors.New("unknown asset")

// Common prefab paths.
const (
	A320           = "Assets/Airplanes/A320"
	B747           = "Assets/Airplanes/USAF747"
	C172           = "Assets/Airplanes/Cessna172"
	F16            = "Assets/Airplanes/F16"
	Glider01       = "Assets/Gliders/Glider01"
	Balloon01      = "Assets/Aerostats/HotAirBalloon01"
	QuadcopterF450 = "Assets/UAVs/DJIF450"
)

type Category struct {
	Name   string   `yaml:"name"`
	Models []string `yaml:"models"`
}

// Catalog is the set of spawnable prefabs.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Path returns the prefab address of model in category.
func Path(category, model string) string {
	return "Assets/" + category + "/" + model
}

// Default returns the embedded catalog.
func Default() Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded asset catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns the embedded catalog.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	c, err := Parse(b)
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, err
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects empty names and duplicate paths.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{})
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return errors.New("category with empty name")
		}
		for _, m := range cat.Models {
			if strings.TrimSpace(m) == "" {
				return fmt.Errorf("category %s: empty model name", cat.Name)
			}
			p := Path(cat.Name, m)
			if _, dup := seen[p]; dup {
				return fmt.Errorf("duplicate asset %s", p)
			}
			seen[p] = struct{}{}
		}
	}
	return nil
}

// All returns every prefab path in catalog order.
func (c Catalog) All() []string {
	var out []string
	for _, cat := range c.Categories {
		for _, m := range cat.Models {
			out = append(out, Path(cat.Name, m))
		}
	}
	return out
}

// Lookup returns the path of model, searching every category.
func (c Catalog) Lookup(model string) (string, error) {
	for _, cat := range c.Categories {
		for _, m := range cat.Models {
			if strings.EqualFold(m, model) {
				return Path(cat.Name, m), nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAsset, model)
}

// Contains reports whether path is a prefab in the catalog.
func (c Catalog) Contains(path string) bool {
	for _, p := range c.All() {
		if p == path {
			return true
		}
	}
	return false
}
