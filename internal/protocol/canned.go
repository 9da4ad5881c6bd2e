package protocol

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/cellular/internal/sim"
	"github.com/RMahshie/cellular/pkg/models"
)

var (
	ErrNoSoma     = errors.New("cell has no soma section")
	ErrNoDendrite = errors.New("cell has no dend section")
	ErrNoPulses   = errors.New("no pulse amplitudes")
)

// PassiveParams are the dendritic properties varied by PassiveProperties
type PassiveParams struct {
	Diam float64 `json:"diam" yaml:"diam" def:"1" desc:"dendrite diameter, um"`
	Ra   float64 `json:"ra" yaml:"ra" def:"300" desc:"axial resistivity, ohm cm"`
	Cm   float64 `json:"cm" yaml:"cm" def:"1" desc:"specific capacitance, uF/cm2"`
}

func DefaultPassiveParams() PassiveParams {
	return PassiveParams{Diam: 1, Ra: 300, Cm: 1}
}

// Passive-properties protocol: three short pulses along the dendrite
const (
	passiveAmp   = 0.4
	passiveDur   = 50.0
	passiveVInit = -70.0
	passiveTStop = 700.0
)

var passiveSites = []struct{ x, delay float64 }{
	{0, 100},
	{0.5, 300},
	{1, 500},
}

// PassiveProperties applies p to the dendrite of a ball-and-stick cell,
// injects 0.4 nA for 50 ms at dend(0), dend(0.5) and dend(1) at 100, 300
// and 500 ms and records the soma.
func PassiveProperties(p PassiveParams, opts ...sim.Option) (models.Recording, error) {
	cell := sim.BallAndStick()
	dend, ok := cell.Section("dend")
	if !ok {
		return models.Recording{}, ErrNoDendrite
	}
	soma, ok := cell.Section("soma")
	if !ok {
		return models.Recording{}, ErrNoSoma
	}
	if p.Diam > 0 {
		dend.Diam = p.Diam
	}
	if p.Ra > 0 {
		dend.Ra = p.Ra
	}
	if p.Cm > 0 {
		dend.Cm = p.Cm
	}

	s := NewSession(cell, opts...)
	for _, site := range passiveSites {
		s.IClamp(dend.At(site.x), site.delay, passiveAmp, passiveDur)
	}
	s.RecordVoltage(soma.At(0.5))

	if _, err := s.InitRun(passiveVInit, passiveTStop); err != nil {
		return models.Recording{}, fmt.Errorf("passive properties run: %w", err)
	}
	return s.Traces(), nil
}

// Square-pulse protocol timing
const (
	PulseDelay = 100.0
	PulseDur   = 300.0
	PulseVInit = -65.0
	PulseTStop = 500.0
)

// PulseRun is the response to one square pulse
type PulseRun struct {
	Amp     float64   `json:"amp"`
	Time    []float64 `json:"time"`
	Current []float64 `json:"current"`
	Voltage []float64 `json:"voltage"`
}

// PulseSet holds one run per amplitude
type PulseSet struct {
	Runs []PulseRun `json:"runs"`
}

// somaOf returns the section named soma or the first somatic section
func somaOf(cell *sim.Cell) (*sim.Section, error) {
	if s, ok := cell.Section("soma"); ok {
		return s, nil
	}
	for _, s := range cell.Sections() {
		if s.Type == 1 {
			return s, nil
		}
	}
	return nil, ErrNoSoma
}

// SquarePulses injects a 300 ms pulse of every amplitude at soma(0.5),
// each on a fresh electrode, recording soma voltage and injected current.
func SquarePulses(amps []float64, cell *sim.Cell, opts ...sim.Option) (*PulseSet, error) {
	if len(amps) == 0 {
		return nil, ErrNoPulses
	}
	soma, err := somaOf(cell)
	if err != nil {
		return nil, err
	}
	loc := soma.At(0.5)

	set := &PulseSet{Runs: make([]PulseRun, 0, len(amps))}
	s := NewSession(cell, opts...)
	for i, amp := range amps {
		s.Reset()
		s.IClamp(loc, PulseDelay, amp, PulseDur)
		s.RecordVoltage(loc)
		if _, err := s.InitRun(PulseVInit, PulseTStop); err != nil {
			return nil, fmt.Errorf("pulse %d (%g nA): %w", i, amp, err)
		}
		rec := s.Traces()
		set.Runs = append(set.Runs, PulseRun{
			Amp:     amp,
			Time:    rec.Time,
			Current: rec.Currents[0].Values,
			Voltage: rec.Voltages[0].Values,
		})
		log.Debug().Int("pulse", i).Float64("amp", amp).Msg("Square pulse done")
	}
	return set, nil
}

// Recording flattens the set into one time axis with a voltage and a
// current trace per amplitude
func (p *PulseSet) Recording() models.Recording {
	var rec models.Recording
	for _, r := range p.Runs {
		if rec.Time == nil {
			rec.Time = r.Time
		}
		label := "I=" + strconv.FormatFloat(r.Amp, 'g', -1, 64) + " nA"
		rec.Voltages = append(rec.Voltages, models.Trace{Label: label, Unit: "mV", Values: r.Voltage})
		rec.Currents = append(rec.Currents, models.Trace{Label: label, Unit: "nA", Values: r.Current})
	}
	return rec
}

// WriteCSV writes columns time_i,current_i,voltage_i for every run, one row per sample
func (p *PulseSet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, 3*len(p.Runs))
	rows := 0
	for i, r := range p.Runs {
		header = append(header,
			fmt.Sprintf("time_%d", i),
			fmt.Sprintf("current_%d", i),
			fmt.Sprintf("voltage_%d", i))
		rows = max(rows, len(r.Time))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	field := func(xs []float64, j int) string {
		if j >= len(xs) {
			return ""
		}
		return strconv.FormatFloat(xs[j], 'g', -1, 64)
	}
	row := make([]string, len(header))
	for j := 0; j < rows; j++ {
		for i, r := range p.Runs {
			row[3*i] = field(r.Time, j)
			row[3*i+1] = field(r.Current, j)
			row[3*i+2] = field(r.Voltage, j)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", j, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
