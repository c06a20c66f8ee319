package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var ErrBadQuery = errors.New("catalog: invalid query")

// Sort orders for list queries.
const (
	SortName   = "name"
	SortRarity = "rarity" // highest first, then name
)

// Query filters a list. Empty fields match everything.
type Query struct {
	Search  string // case-insensitive substring of name or id
	Element string // characters only
	Weapon  string // character weapon or weapon type
	Rarity  int
	Kind    string // materials only
	Where   string // expr predicate over the entry's fields, e.g. `rarity >= 5 && element == "pyro"`
	Sort    string
}

// Characters returns the characters matching q.
func (c *Catalog) Characters(q Query) ([]Character, error) {
	prog, err := prepare[Character](q)
	if err != nil {
		return nil, err
	}
	out, err := filter(c.characters, prog, func(v Character) bool {
		return matchSearch(q.Search, v.ID, v.Name) &&
			matchField(q.Element, v.Element) &&
			matchField(q.Weapon, v.Weapon) &&
			(q.Rarity == 0 || q.Rarity == v.Rarity)
	})
	if err != nil {
		return nil, err
	}
	sortEntries(out, q.Sort, func(v Character) (string, int) { return v.Name, v.Rarity })
	return out, nil
}

// Weapons returns the weapons matching q.
func (c *Catalog) Weapons(q Query) ([]Weapon, error) {
	prog, err := prepare[Weapon](q)
	if err != nil {
		return nil, err
	}
	out, err := filter(c.weapons, prog, func(v Weapon) bool {
		return matchSearch(q.Search, v.ID, v.Name) &&
			matchField(q.Weapon, v.Type) &&
			(q.Rarity == 0 || q.Rarity == v.Rarity)
	})
	if err != nil {
		return nil, err
	}
	sortEntries(out, q.Sort, func(v Weapon) (string, int) { return v.Name, v.Rarity })
	return out, nil
}

// Materials returns the materials matching q. Rarity sorting falls back to
// name since materials carry none.
func (c *Catalog) Materials(q Query) ([]Material, error) {
	prog, err := prepare[Material](q)
	if err != nil {
		return nil, err
	}
	out, err := filter(c.materials, prog, func(v Material) bool {
		return matchSearch(q.Search, v.ID, v.Name) && matchField(q.Kind, v.Kind)
	})
	if err != nil {
		return nil, err
	}
	sortEntries(out, q.Sort, func(v Material) (string, int) { return v.Name, 0 })
	return out, nil
}

// prepare validates q and compiles its Where predicate against T's fields.
func prepare[T any](q Query) (*vm.Program, error) {
	switch q.Sort {
	case "", SortName, SortRarity:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", ErrBadQuery, q.Sort)
	}
	if q.Rarity < 0 {
		return nil, fmt.Errorf("%w: negative rarity", ErrBadQuery)
	}
	if strings.TrimSpace(q.Where) == "" {
		return nil, nil
	}
	var env T
	prog, err := expr.Compile(q.Where, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
	}
	return prog, nil
}

func filter[T any](items []T, prog *vm.Program, keep func(T) bool) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !keep(item) {
			continue
		}
		if prog != nil {
			res, err := expr.Run(prog, item)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
			}
			if ok, _ := res.(bool); !ok {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func sortEntries[T any](items []T, by string, key func(T) (name string, rarity int)) {
	switch by {
	case SortName, "":
		sort.SliceStable(items, func(i, j int) bool {
			a, _ := key(items[i])
			b, _ := key(items[j])
			return strings.ToLower(a) < strings.ToLower(b)
		})
	case SortRarity:
		sort.SliceStable(items, func(i, j int) bool {
			an, ar := key(items[i])
			bn, br := key(items[j])
			if ar != br {
				return ar > br
			}
			return strings.ToLower(an) < strings.ToLower(bn)
		})
	}
}

func matchSearch(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func matchField(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}
