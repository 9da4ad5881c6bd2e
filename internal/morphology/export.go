package morphology

import (
	"io"
	"math"

	"github.com/RMahshie/cellular/internal/sim"
)

// FromCell lays out a cell in 3D and returns it as SWC points. Sections that
// carry shape points keep them; the others are drawn as straight cables
// from their attachment point, fanned out by 30 degrees per sibling, with
// one SWC point per compartment boundary.
func FromCell(cell *sim.Cell) *Morphology {
	m := &Morphology{byID: make(map[int]int)}
	add := func(p Point) int {
		p.ID = len(m.Points) + 1
		m.byID[p.ID] = len(m.Points)
		m.Points = append(m.Points, p)
		return p.ID
	}

	// ids of the points at each compartment boundary, index 0 is the attachment
	ends := make(map[*sim.Section][]int)
	dirs := make(map[*sim.Section]float64)

	var place func(sec *sim.Section, attach int, angle float64)
	place = func(sec *sim.Section, attach int, angle float64) {
		typ := sec.Type
		if typ == TypeUndefined {
			typ = TypeBasal
		}
		n := sec.Nseg
		if n < 1 {
			n = 1
		}

		var ids []int
		switch {
		case sec.Type == TypeSoma || (attach == -1 && len(sec.Shape) <= 1):
			var c sim.Point3D
			if len(sec.Shape) > 0 {
				c = sec.Shape[0]
			}
			id := add(Point{Type: TypeSoma, X: c.X, Y: c.Y, Z: c.Z, Radius: sec.Diam / 2, Parent: attach})
			ids = make([]int, n+1)
			for i := range ids {
				ids[i] = id
			}
		case len(sec.Shape) > 1:
			ids = append(ids, attach)
			parent := attach
			for _, s := range sec.Shape {
				parent = add(Point{Type: typ, X: s.X, Y: s.Y, Z: s.Z, Radius: s.Diam / 2, Parent: parent})
				ids = append(ids, parent)
			}
		default:
			origin := Point{}
			if attach > 0 {
				origin, _ = m.Point(attach)
			}
			ids = append(ids, attach)
			parent := attach
			for k := 1; k <= n; k++ {
				d := sec.L * float64(k) / float64(n)
				parent = add(Point{
					Type:   typ,
					X:      origin.X + d*math.Cos(angle),
					Y:      origin.Y + d*math.Sin(angle),
					Z:      origin.Z,
					Radius: sec.Diam / 2,
					Parent: parent,
				})
				ids = append(ids, parent)
			}
		}
		ends[sec] = ids
		dirs[sec] = angle

		for k, ch := range sec.Children() {
			_, x := ch.Parent()
			pts := ends[sec]
			idx := int(math.Round(x * float64(len(pts)-1)))
			spread := float64(k) * math.Pi / 6
			if k%2 == 1 {
				spread = -spread
			}
			place(ch, pts[idx], angle+spread)
		}
	}

	for _, root := range cell.Roots() {
		place(root, -1, 0)
	}
	return m
}

// WriteSWC exports the shape of cell in SWC format
func WriteSWC(w io.Writer, cell *sim.Cell) error {
	return FromCell(cell).Write(w)
}
