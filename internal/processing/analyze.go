package processing

import (
	"errors"
	"fmt"
	"math"

	"github.com/RMahshie/cellular/internal/analysis"
	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

var ErrUnknownKind = errors.New("unknown analysis kind")

// Extractor turns a decoded sweep set into stored results
type Extractor struct {
	// VoltScale multiplies EPSP amplitudes and noise
	VoltScale float64
}

func (e Extractor) params() analysis.Params {
	p := analysis.DefaultParams()
	if e.VoltScale > 0 {
		p.VoltScale = e.VoltScale
	}
	return p
}

// timeAxis returns set.Time or a synthetic axis with step dt
func timeAxis(set *traces.SweepSet, dt float64) []float64 {
	if set.Time != nil {
		return set.Time
	}
	return analysis.TimeAxis(set.Len(), dt)
}

// smoothed low-pass filters every sweep when a cutoff is configured.
// dt is the sampling interval in s.
func smoothed(set *traces.SweepSet, cutoff, dt float64) ([][]float64, error) {
	rows := set.Matrix()
	if cutoff <= 0 {
		return rows, nil
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		s, err := analysis.Smooth(row, cutoff, 1/dt)
		if err != nil {
			return nil, fmt.Errorf("sweep %s: %w", set.Sweeps[i].Label, err)
		}
		out[i] = s
	}
	return out, nil
}

// sampleInterval returns the spacing of t in s; ms marks t as being in ms
func sampleInterval(t []float64, fallback float64, ms bool) float64 {
	if len(t) < 2 {
		return fallback
	}
	dt := t[1] - t[0]
	if ms {
		dt /= 1000
	}
	if dt <= 0 || math.IsNaN(dt) {
		return fallback
	}
	return dt
}

// Analyze runs the feature extraction selected by kind
func (e Extractor) Analyze(kind string, set *traces.SweepSet, p *models.AnalysisParams) (*models.AnalysisResults, error) {
	if p == nil {
		p = &models.AnalysisParams{}
	}
	switch kind {
	case models.KindPSP:
		return e.connection(set, p)
	case models.KindFiring:
		return e.firing(set, p)
	case models.KindBaseline:
		return e.baseline(set, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// connection classifies the responses of one synaptic connection. Time is in s.
func (e Extractor) connection(set *traces.SweepSet, p *models.AnalysisParams) (*models.AnalysisResults, error) {
	dt := p.SampleInterval
	if dt <= 0 {
		dt = analysis.DefaultSampleInterval
	}
	t := timeAxis(set, dt)
	stims := p.StimIndices
	if len(stims) == 0 {
		stims = analysis.DefaultStimIndices
	}

	rows, err := smoothed(set, p.SmoothCutoffHz, sampleInterval(t, dt, false))
	if err != nil {
		return nil, err
	}
	ap := e.params()
	ap.NoiseWindow = p.NoiseWindow
	feats, rep, err := ap.ConnectionFailure(rows, t, stims)
	if err != nil {
		return nil, err
	}
	mean, err := traces.MeanTrace(set.Sweeps)
	if err != nil {
		return nil, err
	}
	return &models.AnalysisResults{
		Connection: &feats,
		Failure:    &rep,
		MeanTrace:  mean,
	}, nil
}

func spikeParams(p *models.AnalysisParams) analysis.SpikeParams {
	sp := analysis.DefaultSpikeParams()
	if p.StimStart > 0 {
		sp.StimStart = p.StimStart
	}
	if p.StimEnd > 0 {
		sp.StimEnd = p.StimEnd
	}
	if p.Threshold != 0 {
		sp.Threshold = p.Threshold
	}
	return sp
}

// msAxis returns the time axis in ms for spike and baseline features
func msAxis(set *traces.SweepSet, p *models.AnalysisParams) []float64 {
	if set.Time != nil {
		return set.Time
	}
	dt := p.SampleInterval
	if dt <= 0 {
		dt = analysis.DefaultSampleInterval
	}
	return analysis.TimeAxis(set.Len(), dt*1000)
}

// firing measures spikes in every sweep. Time is in ms.
func (e Extractor) firing(set *traces.SweepSet, p *models.AnalysisParams) (*models.AnalysisResults, error) {
	t := msAxis(set, p)
	rows, err := smoothed(set, p.SmoothCutoffHz, sampleInterval(t, analysis.DefaultSampleInterval, true))
	if err != nil {
		return nil, err
	}
	sp := spikeParams(p)
	out := make([]models.SpikeFeatures, 0, len(rows))
	for i, v := range rows {
		f, err := sp.Features(t, v)
		if err != nil {
			return nil, fmt.Errorf("sweep %s: %w", set.Sweeps[i].Label, err)
		}
		out = append(out, f)
	}
	return &models.AnalysisResults{Spikes: out}, nil
}

// baseline measures the resting voltage of every sweep. Time is in ms.
func (e Extractor) baseline(set *traces.SweepSet, p *models.AnalysisParams) (*models.AnalysisResults, error) {
	t := msAxis(set, p)
	sp := spikeParams(p)
	out := make([]models.BaselineFeatures, 0, len(set.Sweeps))
	for _, sw := range set.Sweeps {
		f, err := sp.Baseline(t, sw.Values)
		if err != nil {
			return nil, fmt.Errorf("sweep %s: %w", sw.Label, err)
		}
		out = append(out, f)
	}
	return &models.AnalysisResults{Baseline: out}, nil
}
