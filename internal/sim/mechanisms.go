package sim

import "math"

// Passive is the pas mechanism: a linear leak conductance
type Passive struct {
	G float64 `def:"0.001" desc:"leak conductance, S/cm2"`
	E float64 `def:"-70" desc:"leak reversal potential, mV"`
}

func (p *Passive) Defaults() {
	p.G = 0.001
	p.E = -70
}

// HH holds Hodgkin-Huxley squid axon channel densities and reversal potentials
type HH struct {
	GNaBar float64 `def:"0.12" desc:"maximal sodium conductance, S/cm2"`
	GKBar  float64 `def:"0.036" desc:"maximal potassium conductance, S/cm2"`
	GL     float64 `def:"0.0003" desc:"leak conductance, S/cm2"`
	ENa    float64 `def:"50" desc:"sodium reversal potential, mV"`
	EK     float64 `def:"-77" desc:"potassium reversal potential, mV"`
	EL     float64 `def:"-54.3" desc:"leak reversal potential, mV"`
}

func (hh *HH) Defaults() {
	hh.GNaBar = 0.12
	hh.GKBar = 0.036
	hh.GL = 0.0003
	hh.ENa = 50
	hh.EK = -77
	hh.EL = -54.3
}

// hhGates is the per-compartment gating state
type hhGates struct {
	M, H, N float64
}

// vtrap avoids the 0/0 singularity of x / (exp(x/y) - 1)
func vtrap(x, y float64) float64 {
	if math.Abs(x/y) < 1e-6 {
		return y * (1 - x/y/2)
	}
	return x / (math.Exp(x/y) - 1)
}

// hhRates returns steady states and time constants (ms) of m, h, n at v
func hhRates(v, celsius float64) (minf, hinf, ninf, mtau, htau, ntau float64) {
	q10 := math.Pow(3, (celsius-6.3)/10)

	alpha := 0.1 * vtrap(-(v + 40), 10)
	beta := 4 * math.Exp(-(v+65)/18)
	sum := alpha + beta
	mtau = 1 / (q10 * sum)
	minf = alpha / sum

	alpha = 0.07 * math.Exp(-(v+65)/20)
	beta = 1 / (math.Exp(-(v+35)/10) + 1)
	sum = alpha + beta
	htau = 1 / (q10 * sum)
	hinf = alpha / sum

	alpha = 0.01 * vtrap(-(v + 55), 10)
	beta = 0.125 * math.Exp(-(v+65)/80)
	sum = alpha + beta
	ntau = 1 / (q10 * sum)
	ninf = alpha / sum
	return
}

// steady sets the gates to their steady state at v
func (g *hhGates) steady(v, celsius float64) {
	g.M, g.H, g.N, _, _, _ = hhRates(v, celsius)
}

// advance integrates the gates over dt with exponential Euler
func (g *hhGates) advance(v, dt, celsius float64) {
	minf, hinf, ninf, mtau, htau, ntau := hhRates(v, celsius)
	g.M += (1 - math.Exp(-dt/mtau)) * (minf - g.M)
	g.H += (1 - math.Exp(-dt/htau)) * (hinf - g.H)
	g.N += (1 - math.Exp(-dt/ntau)) * (ninf - g.N)
}

// conductances returns sodium, potassium and leak conductance densities (S/cm2)
func (hh *HH) conductances(g hhGates) (gna, gk, gl float64) {
	gna = hh.GNaBar * g.M * g.M * g.M * g.H
	gk = hh.GKBar * g.N * g.N * g.N * g.N
	return gna, gk, hh.GL
}
