package analysis

import (
	timestats "github.com/cwbudde/algo-dsp/stats/time"

	"github.com/RMahshie/cellular/pkg/models"
)

// SpikeParams bounds spike detection, times in ms
type SpikeParams struct {
	StimStart float64 `def:"378.9"`
	StimEnd   float64 `def:"3681.0"`
	Threshold float64 `def:"-20" desc:"mV a peak has to cross upward"`
}

func DefaultSpikeParams() SpikeParams {
	return SpikeParams{StimStart: 378.9, StimEnd: 3681.0, Threshold: -20}
}

// PeakIndices returns the index of the maximum of every excursion above
// the threshold. An excursion still open at the end of the trace counts.
func (p SpikeParams) PeakIndices(v []float64) []int {
	var peaks []int
	in := false
	best := 0
	for i, x := range v {
		switch {
		case !in && x >= p.Threshold:
			in = true
			best = i
		case in && x < p.Threshold:
			in = false
			peaks = append(peaks, best)
		case in && x > v[best]:
			best = i
		}
	}
	if in {
		peaks = append(peaks, best)
	}
	return peaks
}

// SpikeCount is the number of peaks in the whole trace
func (p SpikeParams) SpikeCount(v []float64) int {
	return len(p.PeakIndices(v))
}

// MeanFrequency in Hz: spikes inside the stimulus window divided by the
// time from stimulus start to the last of them. Zero without spikes.
func (p SpikeParams) MeanFrequency(t, v []float64) float64 {
	n := 0
	last := 0.0
	for _, i := range p.PeakIndices(v) {
		if t[i] >= p.StimStart && t[i] <= p.StimEnd {
			n++
			last = t[i]
		}
	}
	if n == 0 || last <= p.StimStart {
		return 0
	}
	return 1000 * float64(n) / (last - p.StimStart)
}

// VoltageBase is the mean voltage over [0.9*StimStart, StimStart]
func (p SpikeParams) VoltageBase(t, v []float64) float64 {
	var win []float64
	for i, ti := range t {
		if ti >= 0.9*p.StimStart && ti <= p.StimStart {
			win = append(win, v[i])
		}
	}
	if len(win) == 0 {
		return 0
	}
	return timestats.Calculate(win).DC
}

// AHPDepth is, for every pair of consecutive peaks, the minimum voltage
// between them relative to VoltageBase.
func (p SpikeParams) AHPDepth(t, v []float64) []float64 {
	peaks := p.PeakIndices(v)
	if len(peaks) < 2 {
		return []float64{}
	}
	base := p.VoltageBase(t, v)
	depths := make([]float64, 0, len(peaks)-1)
	for k := 1; k < len(peaks); k++ {
		st := timestats.Calculate(v[peaks[k-1] : peaks[k]+1])
		depths = append(depths, st.Min-base)
	}
	return depths
}

// Features bundles the spike measurements of one trace
func (p SpikeParams) Features(t, v []float64) (models.SpikeFeatures, error) {
	if len(v) == 0 {
		return models.SpikeFeatures{}, ErrEmptyTrace
	}
	if len(t) != len(v) {
		return models.SpikeFeatures{}, ErrLengthMismatch
	}
	peaks := p.PeakIndices(v)
	times := make([]float64, len(peaks))
	for k, i := range peaks {
		times[k] = t[i]
	}
	return models.SpikeFeatures{
		SpikeCount:    len(peaks),
		MeanFrequency: p.MeanFrequency(t, v),
		AHPDepth:      p.AHPDepth(t, v),
		PeakTimes:     times,
	}, nil
}

// Baseline measures the resting voltage of one trace
func (p SpikeParams) Baseline(t, v []float64) (models.BaselineFeatures, error) {
	if len(v) == 0 {
		return models.BaselineFeatures{}, ErrEmptyTrace
	}
	if len(t) != len(v) {
		return models.BaselineFeatures{}, ErrLengthMismatch
	}
	return models.BaselineFeatures{VoltageBase: p.VoltageBase(t, v)}, nil
}
