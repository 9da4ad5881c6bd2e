package models

// PercentLevels holds values at the 5, 20 and 80 percent points of an EPSP rise
type PercentLevels struct {
	Five   float64 `json:"five"`
	Twenty float64 `json:"twenty"`
	Eighty float64 `json:"eighty"`
}

// EPSPFeatures describes a single EPSP (Feldmeyer et al., 1999 definitions)
type EPSPFeatures struct {
	Levels        PercentLevels `json:"levels" doc:"Trace values at 5/20/80 percent of the peak amplitude"`
	Times         PercentLevels `json:"times" doc:"First times the trace reaches each level"`
	Peak          float64       `json:"peak" doc:"Peak-to-trough amplitude of the window"`
	RiseAmplitude float64       `json:"rise_amplitude" doc:"80 percent level minus 20 percent level, +0.6 Peak for a depolarizing EPSP"`
	TauRise       float64       `json:"tau_rise" doc:"Time between 20 and 80 percent of the rise"`
	Latency       float64       `json:"latency" doc:"Time between stimulation and 5 percent of the rise"`
}

// ConnectionFeatures holds per-sweep, per-stimulus features of one connection.
// Rows are sweeps, columns are stimuli.
type ConnectionFeatures struct {
	Amplitudes [][]float64 `json:"amplitudes" doc:"EPSP amplitudes in mV"`
	TauRises   [][]float64 `json:"tau_rises" doc:"20-80 percent rise times in s"`
	Latencies  [][]float64 `json:"latencies" doc:"Latencies in s"`
	Noise      []float64   `json:"noise" doc:"Baseline peak-to-peak noise per sweep in mV"`
}

// FailureReport is the outcome of classifying responses into failures and successes
type FailureReport struct {
	Failures       int       `json:"failures"`
	Total          int       `json:"total"`
	Rate           float64   `json:"rate" doc:"Failures divided by total"`
	NoiseStd       float64   `json:"noise_std" doc:"Sample standard deviation of baseline noise"`
	LatencyAverage float64   `json:"latency_average"`
	FailedAmps     []float64 `json:"failed_amps"`
	CorrectAmps    []float64 `json:"correct_amps"`
}

// SpikeFeatures is the supra-threshold feature set of a voltage trace
type SpikeFeatures struct {
	SpikeCount    int       `json:"spike_count"`
	MeanFrequency float64   `json:"mean_frequency" doc:"Spikes per second between stimulus onset and last spike"`
	AHPDepth      []float64 `json:"ahp_depth" doc:"Inter-spike minima relative to voltage base"`
	PeakTimes     []float64 `json:"peak_times"`
}

// BaselineFeatures is the sub-threshold feature set of a voltage trace
type BaselineFeatures struct {
	VoltageBase float64 `json:"voltage_base" doc:"Mean voltage just before stimulus onset"`
}
