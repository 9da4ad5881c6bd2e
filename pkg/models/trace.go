package models

// Trace is a single recorded or simulated signal
type Trace struct {
	Label  string    `json:"label" doc:"Recording location or sweep name, e.g. soma(0.5)"`
	Unit   string    `json:"unit,omitempty" doc:"Physical unit of the values"`
	Values []float64 `json:"values" doc:"Samples"`
}

// Len returns the number of samples
func (t Trace) Len() int {
	return len(t.Values)
}

// Recording bundles a time vector with the voltage and current traces sampled on it
type Recording struct {
	Time     []float64 `json:"time" doc:"Sample times in ms"`
	Voltages []Trace   `json:"voltages" doc:"Membrane potential traces in mV"`
	Currents []Trace   `json:"currents" doc:"Electrode current traces in nA"`
}
