// Package matrix declares benchmark axes and binds every point of their
// cross product to a kernel factory.
package matrix

import (
	"fmt"
	"iter"
	"path"
	"strings"

	"microbench/internal/kernel"
)

// Separator joins axis values into a cell name.
const Separator = "/"

// Axis is one independent dimension of the matrix. Values are kept in
// declaration order.
type Axis struct {
	Name   string
	Values []string
}

// Cell is one point of the matrix: one value per axis, in axis order.
// Cells are immutable; the zero Cell has no axes.
type Cell struct {
	names  []string
	values []string
}

// Name concatenates the values in declaration order, e.g. "Insert/Growable/Small/8".
func (c Cell) Name() string {
	return strings.Join(c.values, Separator)
}

func (c Cell) String() string { return c.Name() }

// Values returns a copy of the axis values.
func (c Cell) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Value returns the value on the named axis, or "" if the axis is unknown.
func (c Cell) Value(axis string) string {
	for i, n := range c.names {
		if n == axis {
			return c.values[i]
		}
	}
	return ""
}

// Len is the number of axes.
func (c Cell) Len() int { return len(c.values) }

// Matrix is the set of axes plus the kernel bindings of their cells.
// It is not safe for concurrent registration; resolution after
// registration is complete is read-only.
type Matrix struct {
	axes     []Axis
	names    []string
	position []map[string]int
	bindings map[string]kernel.Factory
}

// New declares a matrix over the given axes. Every axis must have a unique
// non-empty name and a non-empty set of unique values.
func New(axes ...Axis) (*Matrix, error) {
	if len(axes) == 0 {
		return nil, &ConfigurationError{Reason: "at least one axis is required"}
	}

	m := &Matrix{
		bindings: make(map[string]kernel.Factory),
	}
	seen := make(map[string]bool)
	for _, a := range axes {
		if a.Name == "" {
			return nil, &ConfigurationError{Reason: "axis name must not be empty"}
		}
		if seen[a.Name] {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate axis %q", a.Name)}
		}
		seen[a.Name] = true

		if len(a.Values) == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("axis %q has an empty value set", a.Name)}
		}
		pos := make(map[string]int, len(a.Values))
		for i, v := range a.Values {
			if v == "" || strings.Contains(v, Separator) {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("axis %q: invalid value %q", a.Name, v)}
			}
			if _, dup := pos[v]; dup {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("axis %q: duplicate value %q", a.Name, v)}
			}
			pos[v] = i
		}

		values := make([]string, len(a.Values))
		copy(values, a.Values)
		m.axes = append(m.axes, Axis{Name: a.Name, Values: values})
		m.names = append(m.names, a.Name)
		m.position = append(m.position, pos)
	}
	return m, nil
}

// Axes returns a copy of the declared axes.
func (m *Matrix) Axes() []Axis {
	out := make([]Axis, len(m.axes))
	for i, a := range m.axes {
		values := make([]string, len(a.Values))
		copy(values, a.Values)
		out[i] = Axis{Name: a.Name, Values: values}
	}
	return out
}

// Size is the number of cells, the product of the axis cardinalities.
func (m *Matrix) Size() int {
	n := 1
	for _, a := range m.axes {
		n *= len(a.Values)
	}
	return n
}

// Bound is the number of cells with a kernel binding.
func (m *Matrix) Bound() int {
	return len(m.bindings)
}

// Cell builds the cell for the given values, one per axis in order.
func (m *Matrix) Cell(values ...string) (Cell, error) {
	if len(values) != len(m.axes) {
		return Cell{}, &ConfigurationError{
			Cell:   strings.Join(values, Separator),
			Reason: fmt.Sprintf("expected %d axis values, got %d", len(m.axes), len(values)),
		}
	}
	for i, v := range values {
		if _, ok := m.position[i][v]; !ok {
			return Cell{}, &ConfigurationError{
				Cell:   strings.Join(values, Separator),
				Reason: fmt.Sprintf("unknown value %q on axis %q", v, m.names[i]),
			}
		}
	}
	return m.newCell(values), nil
}

func (m *Matrix) newCell(values []string) Cell {
	v := make([]string, len(values))
	copy(v, values)
	return Cell{names: m.names, values: v}
}

// Register binds factory to the cell identified by values. Binding the
// same cell twice is an error, since the matrix would become ambiguous.
func (m *Matrix) Register(factory kernel.Factory, values ...string) error {
	cell, err := m.Cell(values...)
	if err != nil {
		return err
	}
	return m.bind(cell, factory)
}

func (m *Matrix) bind(cell Cell, factory kernel.Factory) error {
	if factory == nil {
		return &ConfigurationError{Cell: cell.Name(), Reason: "nil kernel factory"}
	}
	key := cell.Name()
	if _, exists := m.bindings[key]; exists {
		return &ConfigurationError{Cell: key, Reason: "registered twice"}
	}
	m.bindings[key] = factory
	return nil
}

// RegisterEach walks every cell and binds the factory returned by fn.
// A nil factory with a nil error leaves the cell unbound, which Validate
// will then report.
func (m *Matrix) RegisterEach(fn func(Cell) (kernel.Factory, error)) error {
	for cell := range m.Cells() {
		factory, err := fn(cell)
		if err != nil {
			return &ConfigurationError{Cell: cell.Name(), Reason: "binding failed", Err: err}
		}
		if factory == nil {
			continue
		}
		if err := m.bind(cell, factory); err != nil {
			return err
		}
	}
	return nil
}

// Cells yields the full cross product lazily. The first axis varies
// slowest and values follow declaration order, so the sequence is the
// same on every call.
func (m *Matrix) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		idx := make([]int, len(m.axes))
		values := make([]string, len(m.axes))
		for {
			for i, a := range m.axes {
				values[i] = a.Values[idx[i]]
			}
			if !yield(m.newCell(values)) {
				return
			}

			// odometer increment, last axis fastest
			i := len(idx) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(m.axes[i].Values) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// Resolve returns the factory bound to cell.
func (m *Matrix) Resolve(cell Cell) (kernel.Factory, error) {
	factory, ok := m.bindings[cell.Name()]
	if !ok {
		return nil, &UnboundCellError{Cell: cell.Name()}
	}
	return factory, nil
}

// Validate fails on the first cell, in enumeration order, that has no
// binding.
func (m *Matrix) Validate() error {
	for cell := range m.Cells() {
		if _, ok := m.bindings[cell.Name()]; !ok {
			return &UnboundCellError{Cell: cell.Name()}
		}
	}
	return nil
}

// Selector filters cells by a glob over their name. Each "/"-separated
// segment is matched with path.Match against the corresponding axis
// value; missing trailing segments match anything.
type Selector struct {
	segments []string
}

// ParseSelector validates pattern. An empty pattern selects every cell.
func ParseSelector(pattern string) (*Selector, error) {
	if pattern == "" {
		return &Selector{}, nil
	}
	segments := strings.Split(pattern, Separator)
	for _, s := range segments {
		if _, err := path.Match(s, ""); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("bad filter %q", pattern), Err: err}
		}
	}
	return &Selector{segments: segments}, nil
}

// Matches reports whether cell is selected.
func (s *Selector) Matches(cell Cell) bool {
	if s == nil {
		return true
	}
	if len(s.segments) > len(cell.values) {
		return false
	}
	for i, seg := range s.segments {
		ok, _ := path.Match(seg, cell.values[i])
		if !ok {
			return false
		}
	}
	return true
}
