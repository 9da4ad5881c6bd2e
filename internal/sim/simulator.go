package sim

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotInitialized = errors.New("simulation not initialized")
	ErrNoSections     = errors.New("cell has no sections")
	ErrForeignSection = errors.New("location is not on this cell")
)

// Defaults match NEURON's stdrun
const (
	DefaultDt      = 0.025
	DefaultCelsius = 6.3
)

// Option configures a Simulator
type Option func(*Simulator)

// WithDt sets the integration step in ms
func WithDt(dt float64) Option {
	return func(s *Simulator) {
		if dt > 0 {
			s.Dt = dt
		}
	}
}

// WithCelsius sets the temperature used by temperature-sensitive channels
func WithCelsius(c float64) Option {
	return func(s *Simulator) { s.Celsius = c }
}

type recorder struct {
	vec    *Vector
	loc    *Location
	sample func() float64
}

// Simulator integrates the membrane potential of a cell
type Simulator struct {
	Cell    *Cell
	Dt      float64
	Celsius float64

	clamps  []*IClamp
	records []recorder

	step        int
	initialized bool

	// compiled compartment tree, parent[i] < i
	v      []float64
	parent []int
	cap    []float64 // nF
	gAx    []float64 // uS, to parent
	area   []float64 // cm2
	sec    []*Section
	gates  []hhGates
	iInj   []float64
	diag   []float64
	off    []float64
	rhs    []float64
	sorted []*Section
}

// New creates a simulator for cell
func New(cell *Cell, opts ...Option) *Simulator {
	s := &Simulator{
		Cell:    cell,
		Dt:      DefaultDt,
		Celsius: DefaultCelsius,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// T returns the current simulation time in ms
func (s *Simulator) T() float64 {
	return float64(s.step) * s.Dt
}

// AddIClamp places a current-clamp electrode at loc
func (s *Simulator) AddIClamp(loc Location, delay, dur, amp float64) *IClamp {
	c := &IClamp{Loc: loc, Delay: delay, Dur: dur, Amp: amp}
	s.clamps = append(s.clamps, c)
	return c
}

// Clamps returns all electrodes in insertion order
func (s *Simulator) Clamps() []*IClamp {
	return s.clamps
}

// RecordTime records t at every sample
func (s *Simulator) RecordTime() *Vector {
	vec := &Vector{Label: "t"}
	s.records = append(s.records, recorder{vec: vec, sample: s.T})
	return vec
}

// RecordVoltage records the membrane potential at loc
func (s *Simulator) RecordVoltage(loc Location) *Vector {
	vec := &Vector{Label: loc.String()}
	s.records = append(s.records, recorder{vec: vec, loc: &loc, sample: func() float64 {
		return s.v[s.index(loc)]
	}})
	return vec
}

// RecordCurrent records the current delivered by c
func (s *Simulator) RecordCurrent(c *IClamp) *Vector {
	vec := &Vector{Label: c.Loc.String()}
	s.records = append(s.records, recorder{vec: vec, sample: func() float64 {
		return c.I
	}})
	return vec
}

// Voltage returns the present membrane potential at loc
func (s *Simulator) Voltage(loc Location) (float64, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	if loc.Section == nil || loc.Section.cell != s.Cell {
		return 0, fmt.Errorf("%w: %s", ErrForeignSection, loc)
	}
	return s.v[s.index(loc)], nil
}

func (s *Simulator) index(loc Location) int {
	return loc.Section.first + loc.Section.segment(loc.X)
}

// Finitialize compiles the cell, sets every compartment to vInit with
// channel gates at steady state, rewinds time to 0 and takes the first sample.
func (s *Simulator) Finitialize(vInit float64) error {
	if err := s.compile(); err != nil {
		return err
	}
	for _, c := range s.clamps {
		if c.Loc.Section == nil || c.Loc.Section.cell != s.Cell {
			return fmt.Errorf("%w: electrode at %s", ErrForeignSection, c.Loc)
		}
	}
	for _, r := range s.records {
		if r.loc != nil && (r.loc.Section == nil || r.loc.Section.cell != s.Cell) {
			return fmt.Errorf("%w: recording at %s", ErrForeignSection, *r.loc)
		}
	}
	for i := range s.v {
		s.v[i] = vInit
		if s.sec[i].HH != nil {
			s.gates[i].steady(vInit, s.Celsius)
		}
	}
	s.step = 0
	s.initialized = true
	for _, r := range s.records {
		r.vec.Values = r.vec.Values[:0]
	}
	s.updateClamps()
	s.sample()
	return nil
}

// ContinueRun advances the simulation until t reaches tStop
func (s *Simulator) ContinueRun(tStop float64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	for s.T() < tStop-s.Dt/2 {
		s.advance()
	}
	return nil
}

// Run is Finitialize followed by ContinueRun
func (s *Simulator) Run(vInit, tStop float64) error {
	if err := s.Finitialize(vInit); err != nil {
		return err
	}
	return s.ContinueRun(tStop)
}

// compile lays out compartments so that every parent precedes its children
func (s *Simulator) compile() error {
	if len(s.Cell.sections) == 0 {
		return ErrNoSections
	}
	s.sorted = s.sorted[:0]
	var walk func(sec *Section)
	walk = func(sec *Section) {
		s.sorted = append(s.sorted, sec)
		for _, ch := range sec.children {
			walk(ch)
		}
	}
	for _, root := range s.Cell.Roots() {
		walk(root)
	}

	n := 0
	for _, sec := range s.sorted {
		sec.first = n
		n += sec.nseg()
	}

	s.v = make([]float64, n)
	s.parent = make([]int, n)
	s.cap = make([]float64, n)
	s.gAx = make([]float64, n)
	s.area = make([]float64, n)
	s.sec = make([]*Section, n)
	s.gates = make([]hhGates, n)
	s.iInj = make([]float64, n)
	s.diag = make([]float64, n)
	s.off = make([]float64, n)
	s.rhs = make([]float64, n)

	for _, sec := range s.sorted {
		area := sec.segArea()
		half := sec.halfSegResistance()
		for k := 0; k < sec.nseg(); k++ {
			i := sec.first + k
			s.sec[i] = sec
			s.area[i] = area
			s.cap[i] = sec.Cm * area * 1e3
			switch {
			case k > 0:
				s.parent[i] = i - 1
				s.gAx[i] = 1e6 / (2 * half)
			case sec.parent != nil:
				p := sec.parent.first + sec.parent.segment(sec.parentX)
				s.parent[i] = p
				s.gAx[i] = 1e6 / (half + sec.parent.halfSegResistance())
			default:
				s.parent[i] = -1
			}
		}
	}
	return nil
}

func (s *Simulator) updateClamps() {
	t := s.T()
	for _, c := range s.clamps {
		c.I = c.At(t)
	}
}

func (s *Simulator) sample() {
	for _, r := range s.records {
		r.vec.Values = append(r.vec.Values, r.sample())
	}
}

// advance takes one backward Euler step
func (s *Simulator) advance() {
	dt := s.Dt
	s.step++
	s.updateClamps()

	for i := range s.iInj {
		s.iInj[i] = 0
	}
	for _, c := range s.clamps {
		s.iInj[s.index(c.Loc)] += c.I
	}

	for i := range s.v {
		sec := s.sec[i]
		a := s.area[i] * 1e6 // S/cm2 -> uS
		var gm, ge float64
		if sec.Passive != nil {
			gm += sec.Passive.G * a
			ge += sec.Passive.G * a * sec.Passive.E
		}
		if sec.HH != nil {
			s.gates[i].advance(s.v[i], dt, s.Celsius)
			gna, gk, gl := sec.HH.conductances(s.gates[i])
			gm += (gna + gk + gl) * a
			ge += (gna*sec.HH.ENa + gk*sec.HH.EK + gl*sec.HH.EL) * a
		}
		cdt := s.cap[i] / dt
		s.diag[i] = cdt + gm
		s.rhs[i] = cdt*s.v[i] + ge + s.iInj[i]
		s.off[i] = 0
	}
	for i, p := range s.parent {
		if p < 0 {
			continue
		}
		g := s.gAx[i]
		s.diag[i] += g
		s.diag[p] += g
		s.off[i] = -g
	}

	s.solve()
	s.sample()
}

// solve runs Hines elimination on the tree matrix and writes s.v
func (s *Simulator) solve() {
	for i := len(s.v) - 1; i >= 0; i-- {
		p := s.parent[i]
		if p < 0 {
			continue
		}
		f := s.off[i] / s.diag[i]
		s.diag[p] -= f * s.off[i]
		s.rhs[p] -= f * s.rhs[i]
	}
	for i := range s.v {
		p := s.parent[i]
		if p < 0 {
			s.v[i] = s.rhs[i] / s.diag[i]
			continue
		}
		s.v[i] = (s.rhs[i] - s.off[i]*s.v[p]) / s.diag[i]
	}
}

// InputResistance estimates the steady-state input resistance (MOhm) at loc
// from a 10 pA step applied for one second on a separate run of the same cell.
func (s *Simulator) InputResistance(loc Location, vRest float64) (float64, error) {
	probe := New(s.Cell, WithDt(s.Dt), WithCelsius(s.Celsius))
	const amp = 0.01
	probe.AddIClamp(loc, 0, math.Inf(1), amp)
	v := probe.RecordVoltage(loc)
	if err := probe.Finitialize(vRest); err != nil {
		return 0, err
	}
	base := v.Values[0]
	if err := probe.ContinueRun(1000); err != nil {
		return 0, err
	}
	return (v.Values[len(v.Values)-1] - base) / amp, nil
}
