package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/RMahshie/cellular/internal/processing"
	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

var analyzeFlags struct {
	stims     []int
	dt        float64
	smooth    float64
	stimStart float64
	stimEnd   float64
	threshold float64
	baseline  bool

	noiseWindow bool
}

// hdf5Note points HDF5 recordings at the formats the analyses read
const hdf5Note = `

HDF5 recordings are not read directly. Export each sweep dataset to one CSV
column (or a JSON array under its dataset name) first, for example with
h5py or h5dump, and pass the result.`

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract features from recorded traces",
}

var analyzeEPSPCmd = &cobra.Command{
	Use:   "epsp <sweeps.csv|sweeps.json|trace.dat>",
	Short: "EPSP amplitudes, rise times, latencies and failure rate of one connection",
	Long: `Analyze the sweeps of one synaptic connection. Each sweep is windowed around
every stimulation index, EPSP features are extracted and responses smaller than
1.5 times the baseline noise spread, or later than 2.5 times the mean latency,
are counted as failures. Time is in s. The noise is the peak-to-peak span of
the whole sweep, or of the baseline before the first stimulation with
--noise-window.` + hdf5Note,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyzeEPSP,
}

var analyzeSpikesCmd = &cobra.Command{
	Use:   "spikes <trace.dat|sweeps.csv>",
	Short: "Spike count, mean frequency and AHP depth (or voltage base with --baseline)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeSpikes,
}

func init() {
	ef := analyzeEPSPCmd.Flags()
	ef.IntSliceVar(&analyzeFlags.stims, "stim", nil, "Stimulation sample indices (default: 1000,1500,...,4500,10000)")
	ef.Float64Var(&analyzeFlags.dt, "dt", 0, "Sample interval in s when the file has no time column (default: 0.0001)")
	ef.Float64Var(&analyzeFlags.smooth, "smooth", 0, "Low-pass cutoff in Hz applied before extraction")
	ef.BoolVar(&analyzeFlags.noiseWindow, "noise-window", false, "Measure noise on the baseline before the first stimulation only")

	sf := analyzeSpikesCmd.Flags()
	sf.Float64Var(&analyzeFlags.stimStart, "stim-start", 0, "Stimulus onset in ms (default: 378.9)")
	sf.Float64Var(&analyzeFlags.stimEnd, "stim-end", 0, "Stimulus end in ms (default: 3681)")
	sf.Float64Var(&analyzeFlags.threshold, "threshold", 0, "Spike threshold in mV (default: -20)")
	sf.BoolVar(&analyzeFlags.baseline, "baseline", false, "Sub-threshold trace: report the voltage base only")

	analyzeCmd.AddCommand(analyzeEPSPCmd, analyzeSpikesCmd)
}

func extractor() processing.Extractor {
	return processing.Extractor{VoltScale: cfg.Analysis.VoltScale}
}

func connectionParams() *models.AnalysisParams {
	return &models.AnalysisParams{
		StimIndices:    analyzeFlags.stims,
		SampleInterval: analyzeFlags.dt,
		SmoothCutoffHz: analyzeFlags.smooth,
		NoiseWindow:    analyzeFlags.noiseWindow,
	}
}

func runAnalyzeEPSP(cmd *cobra.Command, args []string) error {
	set, err := traces.LoadSweeps(args[0])
	if err != nil {
		return err
	}
	res, err := extractor().Analyze(models.KindPSP, set, connectionParams())
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error { return writeJSON(w, res) })
}

func runAnalyzeSpikes(cmd *cobra.Command, args []string) error {
	set, err := traces.LoadSweeps(args[0])
	if err != nil {
		return err
	}
	kind := models.KindFiring
	if analyzeFlags.baseline {
		kind = models.KindBaseline
	}
	res, err := extractor().Analyze(kind, set, &models.AnalysisParams{
		StimStart: analyzeFlags.stimStart,
		StimEnd:   analyzeFlags.stimEnd,
		Threshold: analyzeFlags.threshold,
	})
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error { return writeJSON(w, res) })
}
