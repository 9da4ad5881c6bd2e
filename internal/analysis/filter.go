package analysis

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"
)

// smoothOrder of the Butterworth low-pass used by Smooth
const smoothOrder = 4

// Smooth low-pass filters trace with a Butterworth cascade run forward and
// backward, so threshold crossings are not shifted in time. The input is
// left untouched.
func Smooth(trace []float64, cutoffHz, sampleRate float64) ([]float64, error) {
	if len(trace) == 0 {
		return nil, ErrEmptyTrace
	}
	if cutoffHz <= 0 || sampleRate <= 0 || cutoffHz >= sampleRate/2 {
		return nil, fmt.Errorf("cutoff %g Hz invalid for sample rate %g Hz", cutoffHz, sampleRate)
	}
	coeffs := pass.ButterworthLP(cutoffHz, smoothOrder, sampleRate)

	out := slices.Clone(trace)
	// start from the first sample to avoid a step transient
	run := func(buf []float64) {
		c := biquad.NewChain(coeffs)
		x0 := buf[0]
		for i := range buf {
			buf[i] -= x0
		}
		c.ProcessBlock(buf)
		for i := range buf {
			buf[i] += x0
		}
	}
	run(out)
	slices.Reverse(out)
	run(out)
	slices.Reverse(out)
	return out, nil
}
