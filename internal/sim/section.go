// Package sim is a small compartmental neuron simulator: unbranched cable
// sections joined into a tree, passive and Hodgkin-Huxley membrane
// mechanisms, current-clamp electrodes and vector recording, integrated
// with backward Euler on the Hines-ordered tree.
package sim

import (
	"fmt"
	"math"
)

// NEURON defaults for a freshly created section
const (
	DefaultRa = 35.4
	DefaultCm = 1.0
	DefaultL  = 100.0
)

// Geometry is the cable description of a section
type Geometry struct {
	L    float64 // length, um
	Diam float64 // diameter, um
	Ra   float64 // axial resistivity, ohm cm
	Cm   float64 // specific capacitance, uF/cm2
	Nseg int     // number of compartments
}

// Point3D is a shape point used for morphology export
type Point3D struct {
	X, Y, Z, Diam float64
}

// Section is an unbranched cable split into Nseg compartments
type Section struct {
	Name string
	Geometry

	// Type is the SWC structure identifier (1 soma, 2 axon, 3 dend, 4 apic)
	Type int

	// Shape optionally holds the 3D points the section was built from
	Shape []Point3D

	Passive *Passive
	HH      *HH

	cell     *Cell
	parent   *Section
	parentX  float64
	children []*Section

	// index of the first compartment after the last compile
	first int
}

// Parent returns the parent section and the location on it, nil for a root
func (s *Section) Parent() (*Section, float64) {
	return s.parent, s.parentX
}

// Children returns the sections attached to this one
func (s *Section) Children() []*Section {
	return s.children
}

// InsertPassive inserts the pas mechanism with default parameters and returns it
func (s *Section) InsertPassive() *Passive {
	s.Passive = &Passive{}
	s.Passive.Defaults()
	return s.Passive
}

// InsertHH inserts the hh mechanism with default parameters and returns it
func (s *Section) InsertHH() *HH {
	s.HH = &HH{}
	s.HH.Defaults()
	return s.HH
}

// At returns the location x (0..1) along the section
func (s *Section) At(x float64) Location {
	return Location{Section: s, X: x}
}

// nseg returns the effective compartment count
func (s *Section) nseg() int {
	if s.Nseg < 1 {
		return 1
	}
	return s.Nseg
}

// segment maps a normalized position onto a compartment index within the section
func (s *Section) segment(x float64) int {
	n := s.nseg()
	x = math.Max(0, math.Min(1, x))
	i := int(x * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// segArea is the lateral membrane area of one compartment in cm2
func (s *Section) segArea() float64 {
	dx := s.L / float64(s.nseg())
	return math.Pi * s.Diam * dx * 1e-8
}

// halfSegResistance is the axial resistance of half a compartment in ohm
func (s *Section) halfSegResistance() float64 {
	dx := s.L / float64(s.nseg()) / 2
	r := s.Diam / 2
	return s.Ra * dx / (math.Pi * r * r) * 1e4
}

// Location is a point on a section, written like soma(0.5)
type Location struct {
	Section *Section
	X       float64
}

func (l Location) String() string {
	if l.Section == nil {
		return fmt.Sprintf("<nil>(%g)", l.X)
	}
	return fmt.Sprintf("%s(%g)", l.Section.Name, l.X)
}
