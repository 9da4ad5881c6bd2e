// Package analysis extracts features from voltage traces: EPSP amplitude,
// 20-80 % rise time and latency (Feldmeyer et al., 1999), baseline noise,
// synaptic failure classification and basic spike statistics.
package analysis

import (
	"errors"
	"fmt"
	"math"

	timestats "github.com/cwbudde/algo-dsp/stats/time"

	"github.com/RMahshie/cellular/pkg/models"
)

var (
	ErrEmptyTrace     = errors.New("empty trace")
	ErrLengthMismatch = errors.New("trace and time lengths differ")
	ErrEmptyWindow    = errors.New("window contains no samples")
)

// DefaultVoltScale converts traces recorded in V to mV
const DefaultVoltScale = 1000.0

// Fractions of the peak amplitude used for the rise landmarks
const (
	latencyFraction  = 0.05
	riseLowFraction  = 0.20
	riseHighFraction = 0.80
)

// Params controls windowing and classification
type Params struct {
	Before    int     `def:"50" desc:"samples kept before the stimulation index"`
	After     int     `def:"300" desc:"samples kept after the stimulation index"`
	VoltScale float64 `def:"1000" desc:"multiplier applied to amplitudes and noise"`

	// a response fails when amp < FailAmp * noise std or lat > FailLatency * mean latency
	FailAmp     float64 `def:"1.5"`
	FailLatency float64 `def:"2.5"`

	// NoiseWindow limits the noise to the baseline trace[:stimIndex-Before].
	// Off, the noise is the span of the whole sweep.
	NoiseWindow bool `def:"false"`
}

// DefaultParams returns the windows and thresholds used for paired recordings
func DefaultParams() Params {
	return Params{
		Before:      50,
		After:       300,
		VoltScale:   DefaultVoltScale,
		FailAmp:     1.5,
		FailLatency: 2.5,
	}
}

// ExtractPSPWindow cuts trace and time to [stimIndex-before, stimIndex+after),
// clamped to the bounds of the trace.
func ExtractPSPWindow(trace, time []float64, stimIndex, before, after int) (psp, pspTime []float64, err error) {
	if len(trace) != len(time) {
		return nil, nil, fmt.Errorf("%w: %d samples, %d times", ErrLengthMismatch, len(trace), len(time))
	}
	start := max(0, stimIndex-before)
	end := min(len(trace), stimIndex+after)
	if start >= end {
		return nil, nil, fmt.Errorf("%w: stimulation index %d of %d samples", ErrEmptyWindow, stimIndex, len(trace))
	}
	return trace[start:end], time[start:end], nil
}

// firstAtOrAbove returns the first index whose value reaches level
func firstAtOrAbove(trace []float64, level float64) int {
	for i, x := range trace {
		if x >= level {
			return i
		}
	}
	return len(trace) - 1
}

// ExtractEPSPFeatures measures one EPSP. The amplitude is the span of the
// window; the 5, 20 and 80 percent levels sit that fraction of the span
// above the window minimum and their times are the first samples reaching
// them. Tau rise is |t20 - t80| and latency is |t5 - stimTime|.
func ExtractEPSPFeatures(psp, pspTime []float64, stimTime float64) (models.EPSPFeatures, error) {
	var f models.EPSPFeatures
	if len(psp) == 0 {
		return f, ErrEmptyTrace
	}
	if len(psp) != len(pspTime) {
		return f, fmt.Errorf("%w: %d samples, %d times", ErrLengthMismatch, len(psp), len(pspTime))
	}

	st := timestats.Calculate(psp)
	peak := math.Abs(st.Max - st.Min)

	level := func(frac float64) float64 {
		return st.Max - (1-frac)*peak
	}
	f.Peak = peak
	f.Levels = models.PercentLevels{
		Five:   level(latencyFraction),
		Twenty: level(riseLowFraction),
		Eighty: level(riseHighFraction),
	}
	f.Times = models.PercentLevels{
		Five:   pspTime[firstAtOrAbove(psp, f.Levels.Five)],
		Twenty: pspTime[firstAtOrAbove(psp, f.Levels.Twenty)],
		Eighty: pspTime[firstAtOrAbove(psp, f.Levels.Eighty)],
	}
	// upward: a depolarizing EPSP gives +0.6 Peak
	f.RiseAmplitude = f.Levels.Eighty - f.Levels.Twenty
	f.TauRise = math.Abs(f.Times.Twenty - f.Times.Eighty)
	f.Latency = math.Abs(f.Times.Five - stimTime)
	return f, nil
}

// ExtractTauLatency returns the amplitude scaled by DefaultVoltScale, the
// 20-80 % rise time and the latency of one EPSP.
func ExtractTauLatency(psp, pspTime []float64, stimTime float64) (amp, tauRise, latency float64, err error) {
	return DefaultParams().ExtractTauLatency(psp, pspTime, stimTime)
}

// ExtractTauLatency is ExtractTauLatency with p.VoltScale
func (p Params) ExtractTauLatency(psp, pspTime []float64, stimTime float64) (amp, tauRise, latency float64, err error) {
	f, err := ExtractEPSPFeatures(psp, pspTime, stimTime)
	if err != nil {
		return 0, 0, 0, err
	}
	return f.Peak * p.VoltScale, f.TauRise, f.Latency, nil
}

// ExtractAll measures the EPSP following each stimulation index of trace
func ExtractAll(trace []float64, stimIndices []int, time []float64) (amps, taus, lats []float64, err error) {
	return DefaultParams().ExtractAll(trace, stimIndices, time)
}

// ExtractAll is ExtractAll with p's window and scale
func (p Params) ExtractAll(trace []float64, stimIndices []int, time []float64) (amps, taus, lats []float64, err error) {
	amps = make([]float64, 0, len(stimIndices))
	taus = make([]float64, 0, len(stimIndices))
	lats = make([]float64, 0, len(stimIndices))
	for _, idx := range stimIndices {
		if idx < 0 || idx >= len(time) {
			return nil, nil, nil, fmt.Errorf("%w: stimulation index %d of %d samples", ErrEmptyWindow, idx, len(time))
		}
		psp, pspTime, err := ExtractPSPWindow(trace, time, idx, p.Before, p.After)
		if err != nil {
			return nil, nil, nil, err
		}
		amp, tau, lat, err := p.ExtractTauLatency(psp, pspTime, time[idx])
		if err != nil {
			return nil, nil, nil, err
		}
		amps = append(amps, amp)
		taus = append(taus, tau)
		lats = append(lats, lat)
	}
	return amps, taus, lats, nil
}

// ComputeNoise is the peak-to-peak span of the whole sweep scaled by
// DefaultVoltScale. stimIndex and before only matter with Params.NoiseWindow.
func ComputeNoise(trace []float64, stimIndex, before int) (float64, error) {
	p := DefaultParams()
	p.Before = before
	return p.ComputeNoise(trace, stimIndex)
}

// ComputeNoise is ComputeNoise with p.Before, p.NoiseWindow and p.VoltScale
func (p Params) ComputeNoise(trace []float64, stimIndex int) (float64, error) {
	if len(trace) == 0 {
		return 0, ErrEmptyTrace
	}
	end := len(trace)
	if p.NoiseWindow {
		end = min(len(trace), stimIndex-p.Before)
		if end <= 0 {
			return 0, fmt.Errorf("%w: no baseline before index %d", ErrEmptyWindow, stimIndex)
		}
	}
	st := timestats.Calculate(trace[:end])
	return st.Range * p.VoltScale, nil
}
