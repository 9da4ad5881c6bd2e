package analysis

import (
	"fmt"
	"math"

	timestats "github.com/cwbudde/algo-dsp/stats/time"

	"github.com/RMahshie/cellular/pkg/models"
)

// Paired-recording layout: 1.3 s at 10 kHz, eight pulses at 20 Hz and a recovery pulse
const (
	DefaultSampleInterval = 0.0001
	DefaultDuration       = 1.3
)

// DefaultStimIndices are the presynaptic stimulation sample indices
var DefaultStimIndices = []int{1000, 1500, 2000, 2500, 3000, 3500, 4000, 4500, 10000}

// TimeAxis returns n samples spaced by dt starting at 0
func TimeAxis(n int, dt float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * dt
	}
	return t
}

// DefaultTime is the time axis of a standard paired recording in s
func DefaultTime() []float64 {
	return TimeAxis(int(math.Round(DefaultDuration/DefaultSampleInterval)), DefaultSampleInterval)
}

// CalculateFailureRate classifies every response. Rows of amps and lats are
// sweeps, columns are stimuli. A response fails when its amplitude is below
// 1.5 noise standard deviations or its latency exceeds 2.5 times the mean
// latency of all responses.
func CalculateFailureRate(amps, lats [][]float64, noiseStd float64) models.FailureReport {
	return DefaultParams().CalculateFailureRate(amps, lats, noiseStd)
}

// CalculateFailureRate is CalculateFailureRate with p's factors
func (p Params) CalculateFailureRate(amps, lats [][]float64, noiseStd float64) models.FailureReport {
	rep := models.FailureReport{
		NoiseStd:    noiseStd,
		FailedAmps:  []float64{},
		CorrectAmps: []float64{},
	}

	var sum float64
	var n int
	for _, row := range lats {
		for _, l := range row {
			sum += l
			n++
		}
	}
	if n > 0 {
		rep.LatencyAverage = sum / float64(n)
	}

	for i, row := range amps {
		for j, amp := range row {
			lat := 0.0
			if i < len(lats) && j < len(lats[i]) {
				lat = lats[i][j]
			}
			if amp < p.FailAmp*noiseStd || lat > p.FailLatency*rep.LatencyAverage {
				rep.Failures++
				rep.FailedAmps = append(rep.FailedAmps, amp)
			} else {
				rep.CorrectAmps = append(rep.CorrectAmps, amp)
			}
			rep.Total++
		}
	}
	if rep.Total > 0 {
		rep.Rate = float64(rep.Failures) / float64(rep.Total)
	}
	return rep
}

// SampleStd is the standard deviation with Bessel's correction, 0 below two samples
func SampleStd(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	st := timestats.Calculate(x)
	n := float64(len(x))
	return math.Sqrt(st.Variance * n / (n - 1))
}

// ConnectionFailure runs the whole pipeline for the sweeps of one
// connection: EPSP features after every stimulation index of every sweep,
// baseline noise of every sweep, and failure classification against the
// sample standard deviation of that noise.
func (p Params) ConnectionFailure(sweeps [][]float64, time []float64, stimIndices []int) (models.ConnectionFeatures, models.FailureReport, error) {
	var feats models.ConnectionFeatures
	if len(sweeps) == 0 {
		return feats, models.FailureReport{}, ErrEmptyTrace
	}
	if len(stimIndices) == 0 {
		return feats, models.FailureReport{}, fmt.Errorf("%w: no stimulation indices", ErrEmptyWindow)
	}
	for i, sweep := range sweeps {
		amps, taus, lats, err := p.ExtractAll(sweep, stimIndices, time)
		if err != nil {
			return feats, models.FailureReport{}, fmt.Errorf("sweep %d: %w", i, err)
		}
		noise, err := p.ComputeNoise(sweep, stimIndices[0])
		if err != nil {
			return feats, models.FailureReport{}, fmt.Errorf("sweep %d: %w", i, err)
		}
		feats.Amplitudes = append(feats.Amplitudes, amps)
		feats.TauRises = append(feats.TauRises, taus)
		feats.Latencies = append(feats.Latencies, lats)
		feats.Noise = append(feats.Noise, noise)
	}
	rep := p.CalculateFailureRate(feats.Amplitudes, feats.Latencies, SampleStd(feats.Noise))
	return feats, rep, nil
}
