package sim

// IClamp is a current-clamp electrode delivering a square pulse
type IClamp struct {
	Loc   Location
	Delay float64 // onset, ms
	Dur   float64 // duration, ms
	Amp   float64 // amplitude, nA

	// I is the current delivered at the last sampled time
	I float64
}

// At returns the injected current at time t
func (c *IClamp) At(t float64) float64 {
	if t >= c.Delay && t < c.Delay+c.Dur {
		return c.Amp
	}
	return 0
}

// Vector accumulates samples of a recorded quantity
type Vector struct {
	Label  string
	Values []float64
}

// Len returns the number of recorded samples
func (v *Vector) Len() int {
	return len(v.Values)
}

// Copy returns the samples as a new slice
func (v *Vector) Copy() []float64 {
	out := make([]float64, len(v.Values))
	copy(out, v.Values)
	return out
}
