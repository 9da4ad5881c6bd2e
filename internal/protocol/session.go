// Package protocol sets up current-clamp experiments on a simulated cell:
// electrodes, recordings and runs, plus the canned protocols used to study
// passive properties and firing.
package protocol

import (
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/cellular/internal/sim"
	"github.com/RMahshie/cellular/pkg/models"
)

// Session defaults for IClamp
const (
	DefaultDelay = 100.0 // ms
	DefaultAmp   = 0.1   // nA
	DefaultDur   = 500.0 // ms
)

// Session owns the electrodes and recordings of one experiment on a cell
type Session struct {
	Cell *sim.Cell

	opts []sim.Option
	sim  *sim.Simulator

	stims    []*sim.IClamp
	voltages []*sim.Vector
	currents []*sim.Vector
	time     *sim.Vector
}

// NewSession starts an empty session on cell
func NewSession(cell *sim.Cell, opts ...sim.Option) *Session {
	s := &Session{Cell: cell, opts: opts}
	s.Reset()
	return s
}

// Reset drops every electrode and recording
func (s *Session) Reset() {
	s.sim = sim.New(s.Cell, s.opts...)
	s.stims = nil
	s.voltages = nil
	s.currents = nil
	s.time = nil
}

// Simulator exposes the underlying simulator
func (s *Session) Simulator() *sim.Simulator {
	return s.sim
}

// IClamp places an electrode at loc
func (s *Session) IClamp(loc sim.Location, delay, amp, dur float64) *sim.IClamp {
	c := s.sim.AddIClamp(loc, delay, dur, amp)
	s.stims = append(s.stims, c)
	return c
}

// DefaultIClamp places an electrode with the session defaults
func (s *Session) DefaultIClamp(loc sim.Location) *sim.IClamp {
	return s.IClamp(loc, DefaultDelay, DefaultAmp, DefaultDur)
}

// RecordVoltage adds a membrane potential recording at loc
func (s *Session) RecordVoltage(loc sim.Location) *sim.Vector {
	v := s.sim.RecordVoltage(loc)
	s.voltages = append(s.voltages, v)
	return v
}

// Stimulations returns the electrodes in placement order
func (s *Session) Stimulations() []*sim.IClamp {
	return s.stims
}

// InitRun records the current of every electrode that is not recorded yet,
// initializes to vInit and runs until tStop. It returns the time vector.
func (s *Session) InitRun(vInit, tStop float64) (*sim.Vector, error) {
	for _, c := range s.stims[len(s.currents):] {
		s.currents = append(s.currents, s.sim.RecordCurrent(c))
	}
	if s.time == nil {
		s.time = s.sim.RecordTime()
	}

	log.Debug().
		Str("cell", s.Cell.Name).
		Int("electrodes", len(s.stims)).
		Int("recordings", len(s.voltages)).
		Float64("v_init", vInit).
		Float64("t_stop", tStop).
		Msg("Running simulation")

	if err := s.sim.Run(vInit, tStop); err != nil {
		return nil, err
	}
	return s.time, nil
}

// Traces returns the time, voltage and current traces of the last run
func (s *Session) Traces() models.Recording {
	rec := models.Recording{
		Voltages: make([]models.Trace, 0, len(s.voltages)),
		Currents: make([]models.Trace, 0, len(s.currents)),
	}
	if s.time != nil {
		rec.Time = s.time.Copy()
	}
	for _, v := range s.voltages {
		rec.Voltages = append(rec.Voltages, models.Trace{Label: v.Label, Unit: "mV", Values: v.Copy()})
	}
	for _, c := range s.currents {
		rec.Currents = append(rec.Currents, models.Trace{Label: c.Label, Unit: "nA", Values: c.Copy()})
	}
	return rec
}
