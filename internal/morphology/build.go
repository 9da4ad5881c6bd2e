package morphology

import (
	"fmt"
	"math"

	"github.com/RMahshie/cellular/internal/sim"
)

// Biophysics decides which mechanisms each section type receives
type Biophysics struct {
	Ra            float64     `def:"100" desc:"axial resistivity, ohm cm"`
	Cm            float64     `def:"1" desc:"specific capacitance, uF/cm2"`
	SomaticHH     bool        `def:"true" desc:"insert hh in the soma"`
	AxonalHH      bool        `def:"true" desc:"insert hh in axon sections"`
	Passive       sim.Passive `desc:"leak used by every section without hh"`
	SegmentLength float64     `def:"40" desc:"target compartment length, um"`
}

// DefaultBiophysics returns an active soma and axon with passive dendrites
func DefaultBiophysics() Biophysics {
	b := Biophysics{
		Ra:            100,
		Cm:            1,
		SomaticHH:     true,
		AxonalHH:      true,
		SegmentLength: 40,
	}
	b.Passive.Defaults()
	return b
}

func typeName(t int) string {
	switch t {
	case TypeSoma:
		return "soma"
	case TypeAxon:
		return "axon"
	case TypeApical:
		return "apic"
	default:
		return "dend"
	}
}

func dist(a, b Point) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Build converts the reconstruction into a cell. The soma becomes one
// cylinder with L = diam = 2R of the first soma point; every unbranched run of
// neurite points becomes a section named like dend[3], attached to the
// end of its parent run or to soma(0.5).
func (m *Morphology) Build(name string, bio Biophysics) (*sim.Cell, error) {
	var somaPts []Point
	for _, p := range m.Points {
		if p.Type == TypeSoma {
			somaPts = append(somaPts, p)
		}
	}
	if len(somaPts) == 0 {
		return nil, ErrNoSoma
	}
	c := somaPts[0]
	somaDiam := 2 * c.Radius

	cell := sim.NewCell(name)
	soma, err := cell.AddSection("soma", sim.Geometry{L: somaDiam, Diam: somaDiam, Ra: bio.Ra, Cm: bio.Cm, Nseg: 1})
	if err != nil {
		return nil, err
	}
	soma.Type = TypeSoma
	soma.Shape = []sim.Point3D{{X: c.X, Y: c.Y, Z: c.Z, Diam: somaDiam}}
	bio.apply(soma)

	children := m.children()
	counters := make(map[string]int)

	var grow func(start Point, parent *sim.Section, parentX float64, origin *Point) error
	grow = func(start Point, parent *sim.Section, parentX float64, origin *Point) error {
		run := []Point{start}
		cur := start
		for {
			next := children[cur.ID]
			if len(next) != 1 {
				break
			}
			p, _ := m.Point(next[0])
			if p.Type != start.Type {
				break
			}
			run = append(run, p)
			cur = p
		}

		var length, diam float64
		prev := start
		if origin != nil {
			prev = *origin
		}
		shape := make([]sim.Point3D, 0, len(run))
		for _, p := range run {
			length += dist(prev, p)
			diam += 2 * p.Radius
			prev = p
			shape = append(shape, sim.Point3D{X: p.X, Y: p.Y, Z: p.Z, Diam: 2 * p.Radius})
		}
		diam /= float64(len(run))
		length = math.Max(length, 1e-3)

		tn := typeName(start.Type)
		secName := fmt.Sprintf("%s[%d]", tn, counters[tn])
		counters[tn]++

		nseg := 1
		if bio.SegmentLength > 0 {
			nseg = 1 + 2*int(length/bio.SegmentLength)
		}
		sec, err := cell.AddSection(secName, sim.Geometry{L: length, Diam: diam, Ra: bio.Ra, Cm: bio.Cm, Nseg: nseg})
		if err != nil {
			return err
		}
		sec.Type = start.Type
		sec.Shape = shape
		bio.apply(sec)
		if err := cell.Connect(sec, parent, parentX); err != nil {
			return err
		}

		end := run[len(run)-1]
		for _, id := range children[end.ID] {
			p, _ := m.Point(id)
			if err := grow(p, sec, 1, &end); err != nil {
				return err
			}
		}
		return nil
	}

	for _, p := range m.Points {
		if p.Type == TypeSoma {
			continue
		}
		parent, ok := m.Point(p.Parent)
		if p.Parent == -1 || (ok && parent.Type == TypeSoma) {
			if err := grow(p, soma, 0.5, nil); err != nil {
				return nil, err
			}
		}
	}
	return cell, nil
}

func (b Biophysics) apply(sec *sim.Section) {
	hh := (sec.Type == TypeSoma && b.SomaticHH) || (sec.Type == TypeAxon && b.AxonalHH)
	if hh {
		sec.InsertHH()
		return
	}
	pas := sec.InsertPassive()
	if b.Passive.G != 0 {
		*pas = b.Passive
	}
}
