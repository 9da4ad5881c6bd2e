package main

import (
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

var experimentFlags struct {
	sub bool
}

var experimentCmd = &cobra.Command{
	Use:   "experiment <dir> <name>",
	Short: "Spike or baseline features of every response file of an experiment",
	Long: `Find <name>_ch6_*.dat responses (and <name>_ch7_*.dat stimulation) in dir and
extract supra-threshold features from each response, or the voltage base with --sub.
Recorded time is in ms.`,
	Args: cobra.ExactArgs(2),
	RunE: runExperiment,
}

func init() {
	f := experimentCmd.Flags()
	f.BoolVar(&experimentFlags.sub, "sub", false, "Sub-threshold experiment: report the voltage base")
	f.Float64Var(&analyzeFlags.stimStart, "stim-start", 0, "Stimulus onset in ms (default: 378.9)")
	f.Float64Var(&analyzeFlags.stimEnd, "stim-end", 0, "Stimulus end in ms (default: 3681)")
	f.Float64Var(&analyzeFlags.threshold, "threshold", 0, "Spike threshold in mV (default: -20)")
}

type experimentResult struct {
	File     string                   `json:"file"`
	Spikes   *models.SpikeFeatures    `json:"spikes,omitempty"`
	Baseline *models.BaselineFeatures `json:"baseline,omitempty"`
}

func runExperiment(cmd *cobra.Command, args []string) error {
	exp, err := traces.ListExperiment(args[0], args[1])
	if err != nil {
		return err
	}
	log.Info().Int("responses", len(exp.Responses)).Int("stimuli", len(exp.Stimuli)).Msg("Experiment found")

	sets, err := exp.LoadResponses()
	if err != nil {
		return err
	}
	kind := models.KindFiring
	if experimentFlags.sub {
		kind = models.KindBaseline
	}
	params := &models.AnalysisParams{
		StimStart: analyzeFlags.stimStart,
		StimEnd:   analyzeFlags.stimEnd,
		Threshold: analyzeFlags.threshold,
	}

	out := make([]experimentResult, 0, len(sets))
	for i, set := range sets {
		res, err := extractor().Analyze(kind, set, params)
		if err != nil {
			return err
		}
		r := experimentResult{File: filepath.Base(exp.Responses[i])}
		if len(res.Spikes) > 0 {
			r.Spikes = &res.Spikes[0]
		}
		if len(res.Baseline) > 0 {
			r.Baseline = &res.Baseline[0]
		}
		out = append(out, r)
	}
	return withOutput(func(w io.Writer) error { return writeJSON(w, out) })
}
