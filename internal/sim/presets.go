package sim

// BallAndStick builds the two-section teaching cell: an active soma and a
// passive dendrite attached to soma(1).
//
// soma: L = diam = 12.6157 um, hh
// dend: L = 200 um, diam 1 um, 21 compartments, pas (g 0.001, e -65)
func BallAndStick() *Cell {
	cell := NewCell("BallAndStick")
	soma, _ := cell.AddSection("soma", Geometry{L: 12.6157, Diam: 12.6157, Ra: 100, Cm: 1, Nseg: 1})
	soma.Type = 1
	soma.InsertHH()

	dend, _ := cell.AddSection("dend", Geometry{L: 200, Diam: 1, Ra: 100, Cm: 1, Nseg: 21})
	dend.Type = 3
	pas := dend.InsertPassive()
	pas.E = -65

	_ = cell.Connect(dend, soma, 1)
	return cell
}
