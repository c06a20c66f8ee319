// Package catalog serves the read-only reference data of the wiki:
// characters, weapons, materials and tier lists. Data is loaded once and
// never mutated; every accessor returns copies.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

var ErrNotFound = errors.New("catalog: entry not found")

// Catalog holds the loaded reference data.
type Catalog struct {
	characters []Character
	weapons    []Weapon
	materials  []Material
	tiers      []tierFile

	characterIndex map[string]int
	weaponIndex    map[string]int
	materialIndex  map[string]int
}

// Default loads the data compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads characters.yaml, weapons.yaml, materials.yaml and tiers.yaml
// from fsys. Duplicate ids and tier references to unknown characters are
// rejected.
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{}
	if err := decodeFile(fsys, "characters.yaml", &c.characters); err != nil {
		return nil, err
	}
	if err := decodeFile(fsys, "weapons.yaml", &c.weapons); err != nil {
		return nil, err
	}
	if err := decodeFile(fsys, "materials.yaml", &c.materials); err != nil {
		return nil, err
	}
	if err := decodeFile(fsys, "tiers.yaml", &c.tiers); err != nil {
		return nil, err
	}

	var err error
	if c.characterIndex, err = index(c.characters, func(v Character) string { return v.ID }); err != nil {
		return nil, fmt.Errorf("characters.yaml: %w", err)
	}
	if c.weaponIndex, err = index(c.weapons, func(v Weapon) string { return v.ID }); err != nil {
		return nil, fmt.Errorf("weapons.yaml: %w", err)
	}
	if c.materialIndex, err = index(c.materials, func(v Material) string { return v.ID }); err != nil {
		return nil, fmt.Errorf("materials.yaml: %w", err)
	}
	for _, t := range c.tiers {
		for role, ids := range t.Entries {
			for _, id := range ids {
				if _, ok := c.characterIndex[id]; !ok {
					return nil, fmt.Errorf("tiers.yaml: tier %s role %s: unknown character %q", t.Tier, role, id)
				}
			}
		}
	}
	return c, nil
}

// Character returns the character with id.
func (c *Catalog) Character(id string) (Character, error) {
	i, ok := c.characterIndex[id]
	if !ok {
		return Character{}, fmt.Errorf("%w: character %q", ErrNotFound, id)
	}
	return c.characters[i], nil
}

// Weapon returns the weapon with id.
func (c *Catalog) Weapon(id string) (Weapon, error) {
	i, ok := c.weaponIndex[id]
	if !ok {
		return Weapon{}, fmt.Errorf("%w: weapon %q", ErrNotFound, id)
	}
	return c.weapons[i], nil
}

// Material returns the material with id.
func (c *Catalog) Material(id string) (Material, error) {
	i, ok := c.materialIndex[id]
	if !ok {
		return Material{}, fmt.Errorf("%w: material %q", ErrNotFound, id)
	}
	return c.materials[i], nil
}

// Tiers resolves the tier list. Roles are ordered by name; characters keep
// their ranking order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, 0, len(c.tiers))
	for _, t := range c.tiers {
		roles := make([]string, 0, len(t.Entries))
		for role := range t.Entries {
			roles = append(roles, role)
		}
		sort.Strings(roles)

		tier := Tier{Tier: t.Tier, Roles: make([]TierRole, 0, len(roles))}
		for _, role := range roles {
			tr := TierRole{Role: role}
			for _, id := range t.Entries[role] {
				tr.Characters = append(tr.Characters, c.characters[c.characterIndex[id]])
			}
			tier.Roles = append(tier.Roles, tr)
		}
		out = append(out, tier)
	}
	return out
}

func decodeFile(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("catalog: %s: %w", name, err)
	}
	return nil
}

func index[T any](items []T, id func(T) string) (map[string]int, error) {
	idx := make(map[string]int, len(items))
	for i, item := range items {
		key := id(item)
		if key == "" {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
		if _, dup := idx[key]; dup {
			return nil, fmt.Errorf("duplicate id %q", key)
		}
		idx[key] = i
	}
	return idx, nil
}
