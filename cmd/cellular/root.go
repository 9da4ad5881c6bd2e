// cellular runs the compartmental simulations and trace analyses from the
// command line.
//
// Usage:
//
//	cellular simulate passive --diam=1 --ra=300 --cm=1
//	cellular simulate pulses --amps=0.1,0.5 -o pulses.csv
//	cellular simulate file protocol.yaml
//	cellular analyze epsp connection_c1.csv
//	cellular analyze spikes exp_FirePattern_ch6_001.dat
//	cellular failure-rate --format=table connection_c1.csv connection_c2.csv
//	cellular experiment ./data exp_FirePattern
//	cellular morph export --swc=cell.swc -o out.swc
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/cellular/internal/config"
	"github.com/RMahshie/cellular/internal/sim"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	verbose bool
	output  string
	format  string
}

// cfg is loaded before every command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cellular",
	Short: "Compartmental neuron simulation and electrophysiology trace analysis",
	Long: `Cellular runs current-clamp protocols on small compartmental cells and
extracts EPSP, failure-rate and spike features from recorded traces.

Simulation and analysis defaults come from the environment and .env.<ENVIRONMENT>
(SIM_DT, SIM_CELSIUS, ANALYSIS_WORKERS, VOLT_SCALE).`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if rootFlags.verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Debug logging")
	pf.StringVarP(&rootFlags.output, "output", "o", "", "Output file (default: stdout)")
	pf.StringVar(&rootFlags.format, "format", "json", "Output format: json, csv, or table (failure-rate)")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(failureRateCmd)
	rootCmd.AddCommand(experimentCmd)
	rootCmd.AddCommand(morphCmd)
	rootCmd.Version = version
}

// simOptions returns the simulator settings from configuration
func simOptions() []sim.Option {
	return []sim.Option{sim.WithDt(cfg.Simulation.Dt), sim.WithCelsius(cfg.Simulation.Celsius)}
}

// withOutput calls fn with the --output file or stdout
func withOutput(fn func(w io.Writer) error) error {
	if rootFlags.output == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(rootFlags.output)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", rootFlags.output).Msg("Output written")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
