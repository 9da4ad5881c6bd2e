package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RMahshie/cellular/internal/processing"
)

var failureRateCmd = &cobra.Command{
	Use:   "failure-rate <connection files...>",
	Short: "Failure rate of several connections, analyzed concurrently",
	Long: `Run the EPSP failure analysis on every connection file with up to
ANALYSIS_WORKERS files in flight. Prints every result as JSON, one summary row
per connection with --format=csv, or an aligned summary with --format=table.` + hdf5Note,
	Args: cobra.MinimumNArgs(1),
	RunE: runFailureRate,
}

func init() {
	f := failureRateCmd.Flags()
	f.IntSliceVar(&analyzeFlags.stims, "stim", nil, "Stimulation sample indices (default: 1000,1500,...,4500,10000)")
	f.Float64Var(&analyzeFlags.dt, "dt", 0, "Sample interval in s when files have no time column")
	f.Float64Var(&analyzeFlags.smooth, "smooth", 0, "Low-pass cutoff in Hz applied before extraction")
	f.BoolVar(&analyzeFlags.noiseWindow, "noise-window", false, "Measure noise on the baseline before the first stimulation only")
}

var failureColumns = []string{"connection", "sweeps", "failures", "total", "rate", "noise_std_mv"}

func failureRow(r processing.ConnectionResult) []string {
	return []string{
		r.Path,
		strconv.Itoa(r.Sweeps),
		strconv.Itoa(r.Failure.Failures),
		strconv.Itoa(r.Failure.Total),
		strconv.FormatFloat(r.Failure.Rate, 'g', -1, 64),
		strconv.FormatFloat(r.Failure.NoiseStd, 'g', -1, 64),
	}
}

func writeFailureCSV(w io.Writer, results []processing.ConnectionResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(failureColumns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(failureRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFailureTable(w io.Writer, results []processing.ConnectionResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONNECTION\tSWEEPS\tFAILURES\tTOTAL\tRATE\tNOISE STD (mV)")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.3f\t%.4f\n",
			r.Path, r.Sweeps, r.Failure.Failures, r.Failure.Total, r.Failure.Rate, r.Failure.NoiseStd)
	}
	return tw.Flush()
}

func runFailureRate(cmd *cobra.Command, args []string) error {
	results, err := extractor().ProcessConnections(cmd.Context(), args, connectionParams(), cfg.Analysis.Workers)
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error {
		switch rootFlags.format {
		case "json":
			return writeJSON(w, results)
		case "csv":
			return writeFailureCSV(w, results)
		case "table":
			return writeFailureTable(w, results)
		default:
			return fmt.Errorf("unknown format %q", rootFlags.format)
		}
	})
}
