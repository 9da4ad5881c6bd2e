package sim

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyConnected = errors.New("section already has a parent")
	ErrCycle            = errors.New("connection would create a cycle")
	ErrDuplicateSection = errors.New("duplicate section name")
)

// Cell is a tree of sections
type Cell struct {
	Name     string
	sections []*Section
	byName   map[string]*Section
}

// NewCell creates an empty cell
func NewCell(name string) *Cell {
	return &Cell{
		Name:   name,
		byName: make(map[string]*Section),
	}
}

// AddSection creates a section with the given geometry. Zero geometry
// fields fall back to NEURON defaults.
func (c *Cell) AddSection(name string, geom Geometry) (*Section, error) {
	if _, ok := c.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSection, name)
	}
	if geom.L == 0 {
		geom.L = DefaultL
	}
	if geom.Diam == 0 {
		geom.Diam = 500 // NEURON's default diam for a new section
	}
	if geom.Ra == 0 {
		geom.Ra = DefaultRa
	}
	if geom.Cm == 0 {
		geom.Cm = DefaultCm
	}
	if geom.Nseg < 1 {
		geom.Nseg = 1
	}
	sec := &Section{Name: name, Geometry: geom, cell: c}
	c.sections = append(c.sections, sec)
	c.byName[name] = sec
	return sec, nil
}

// Section looks up a section by name
func (c *Cell) Section(name string) (*Section, bool) {
	sec, ok := c.byName[name]
	return sec, ok
}

// Sections returns all sections in creation order
func (c *Cell) Sections() []*Section {
	return c.sections
}

// Connect attaches the 0 end of child to location x on parent
func (c *Cell) Connect(child, parent *Section, x float64) error {
	if child.parent != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, child.Name)
	}
	for p := parent; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("%w: %s -> %s", ErrCycle, child.Name, parent.Name)
		}
	}
	child.parent = parent
	child.parentX = x
	parent.children = append(parent.children, child)
	return nil
}

// Roots returns sections without a parent
func (c *Cell) Roots() []*Section {
	var roots []*Section
	for _, s := range c.sections {
		if s.parent == nil {
			roots = append(roots, s)
		}
	}
	return roots
}

// TotalArea returns the membrane area of the cell in um2
func (c *Cell) TotalArea() float64 {
	var a float64
	for _, s := range c.sections {
		a += s.segArea() * float64(s.nseg()) * 1e8
	}
	return a
}
