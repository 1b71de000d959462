// Package navigation holds the sidebar menu and filters it by access.
package navigation

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rtauto/dealer-admin/internal/auth"
)

//go:embed menu.yaml
var defaultMenu []byte

// Item is one sidebar entry.
type Item struct {
	Label   string    `yaml:"label" json:"label"`
	Path    string    `yaml:"path" json:"path"`
	Icon    string    `yaml:"icon" json:"icon,omitempty"`
	MinRole auth.Role `yaml:"min_role" json:"min_role"`
}

// Menu is an ordered list of items.
type Menu struct {
	Items []Item `yaml:"items"`
}

// Gate is the access check a menu is filtered through.
type Gate interface {
	CanAccess(required auth.Role) bool
}

// Parse decodes a menu document. Every item needs a label, a path and a known role.
func Parse(data []byte) (*Menu, error) {
	var m Menu
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	seen := make(map[string]bool, len(m.Items))
	for i, item := range m.Items {
		if item.Label == "" || item.Path == "" {
			return nil, fmt.Errorf("menu item %d: label and path are required", i)
		}
		if !item.MinRole.IsValid() {
			return nil, fmt.Errorf("menu item %q: %w", item.Label, &auth.UnknownRoleError{Role: string(item.MinRole)})
		}
		if seen[item.Path] {
			return nil, fmt.Errorf("menu item %q: duplicate path %s", item.Label, item.Path)
		}
		seen[item.Path] = true
	}
	return &m, nil
}

// Default returns the embedded menu. It panics if menu.yaml is malformed.
func Default() *Menu {
	m, err := Parse(defaultMenu)
	if err != nil {
		panic(err)
	}
	return m
}

// For returns the items the gate allows, in order. The gate denies
// everything while the session is initializing, so the result is empty then.
func (m *Menu) For(gate Gate) []Item {
	items := make([]Item, 0, len(m.Items))
	for _, item := range m.Items {
		if gate.CanAccess(item.MinRole) {
			items = append(items, item)
		}
	}
	return items
}
