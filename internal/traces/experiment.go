package traces

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/RMahshie/cellular/pkg/models"
)

// Channel numbers used by the acquisition rig
const (
	ResponseChannel = "ch6"
	StimulusChannel = "ch7"
)

// Experiment lists the files of one recorded protocol
type Experiment struct {
	Name      string
	Responses []string
	Stimuli   []string
}

// ListExperiment finds <name>_ch6_*.dat (responses) and <name>_ch7_*.dat
// (stimulation) in dir, sorted by file name.
func ListExperiment(dir, name string) (*Experiment, error) {
	resp, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%s_%s_*.dat", name, ResponseChannel)))
	if err != nil {
		return nil, err
	}
	stim, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%s_%s_*.dat", name, StimulusChannel)))
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 && len(stim) == 0 {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoFiles, name, dir)
	}
	sort.Strings(resp)
	sort.Strings(stim)
	return &Experiment{Name: name, Responses: resp, Stimuli: stim}, nil
}

// LoadResponses reads every response file as one sweep. Sweeps keep their
// own time vectors since recordings may differ in length.
func (e *Experiment) LoadResponses() ([]*SweepSet, error) {
	sets := make([]*SweepSet, 0, len(e.Responses))
	for _, path := range e.Responses {
		t, v, err := LoadDat(path)
		if err != nil {
			return nil, err
		}
		sets = append(sets, &SweepSet{Time: t, Sweeps: []models.Trace{{Label: filepath.Base(path), Values: v}}})
	}
	return sets, nil
}
