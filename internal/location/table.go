// Package location holds the static administrative division table and the
// cascading selector built on it.
package location

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/rwanda.yaml
var defaultData []byte

// Node is one administrative division and its subdivisions. In YAML a leaf
// may be written as a bare name.
type Node struct {
	Name     string `yaml:"name"`
	Children []Node `yaml:"children"`
}

// UnmarshalYAML accepts either a scalar name or a mapping
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.Name = value.Value
		n.Children = nil
		return nil
	}
	type plain Node
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	return nil
}

// Table is an immutable five-level lookup. Safe for concurrent use.
type Table struct {
	provinces []Node
}

// Parse decodes a YAML list of provinces
func Parse(data []byte) (*Table, error) {
	var provinces []Node
	if err := yaml.Unmarshal(data, &provinces); err != nil {
		return nil, fmt.Errorf("failed to parse location table: %w", err)
	}
	if err := checkNodes(provinces, 1); err != nil {
		return nil, err
	}
	return &Table{provinces: provinces}, nil
}

func checkNodes(nodes []Node, depth int) error {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.Name == "" {
			return fmt.Errorf("empty name at depth %d", depth)
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate name %q at depth %d", n.Name, depth)
		}
		seen[n.Name] = true
		if depth == 5 && len(n.Children) > 0 {
			return fmt.Errorf("village %q has children", n.Name)
		}
		if err := checkNodes(n.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

var loadDefault = sync.OnceValue(func() *Table {
	t, err := Parse(defaultData)
	if err != nil {
		panic(err)
	}
	return t
})

// Default returns the embedded table
func Default() *Table {
	return loadDefault()
}

// Children returns the ordered names below path. An empty path lists the
// provinces. Unknown ancestors yield an empty, non-nil slice.
func (t *Table) Children(path ...string) []string {
	nodes := t.provinces
	for _, name := range path {
		next, ok := find(nodes, name)
		if !ok {
			return []string{}
		}
		nodes = next.Children
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

// Contains reports whether the full path exists
func (t *Table) Contains(path ...string) bool {
	nodes := t.provinces
	for _, name := range path {
		next, ok := find(nodes, name)
		if !ok {
			return false
		}
		nodes = next.Children
	}
	return true
}

func find(nodes []Node, name string) (Node, bool) {
	for _, n := range nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

func (t *Table) Provinces() []string { return t.Children() }

func (t *Table) DistrictsOf(province string) []string {
	return t.Children(province)
}

func (t *Table) SectorsOf(province, district string) []string {
	return t.Children(province, district)
}

func (t *Table) CellsOf(province, district, sector string) []string {
	return t.Children(province, district, sector)
}

func (t *Table) VillagesOf(province, district, sector, cell string) []string {
	return t.Children(province, district, sector, cell)
}

// DistrictsOf looks up the embedded table
func DistrictsOf(province string) []string {
	return Default().DistrictsOf(province)
}

// SectorsOf looks up the embedded table
func SectorsOf(province, district string) []string {
	return Default().SectorsOf(province, district)
}

// CellsOf looks up the embedded table
func CellsOf(province, district, sector string) []string {
	return Default().CellsOf(province, district, sector)
}

// VillagesOf looks up the embedded table
func VillagesOf(province, district, sector, cell string) []string {
	return Default().VillagesOf(province, district, sector, cell)
}
