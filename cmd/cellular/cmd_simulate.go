package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/cellular/internal/morphology"
	"github.com/RMahshie/cellular/internal/protocol"
	"github.com/RMahshie/cellular/internal/sim"
	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

var simulateFlags struct {
	diam, ra, cm float64
	amps         []float64
	swc          string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a current-clamp protocol",
}

var simulatePassiveCmd = &cobra.Command{
	Use:   "passive",
	Short: "Inject dendritic pulses into a ball-and-stick cell and record the soma",
	Long: `Passive properties protocol: three 0.4 nA, 50 ms pulses at dend(0), dend(0.5)
and dend(1) starting at 100, 300 and 500 ms, soma voltage recorded from -70 mV
for 700 ms. Dendrite diameter, axial resistivity and capacitance can be changed.`,
	Args: cobra.NoArgs,
	RunE: runSimulatePassive,
}

var simulatePulsesCmd = &cobra.Command{
	Use:   "pulses",
	Short: "Inject one 300 ms somatic square pulse per amplitude",
	Args:  cobra.NoArgs,
	RunE:  runSimulatePulses,
}

var simulateFileCmd = &cobra.Command{
	Use:   "file <protocol.yaml>",
	Short: "Run a protocol described in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulateFile,
}

func init() {
	def := protocol.DefaultPassiveParams()
	pf := simulatePassiveCmd.Flags()
	pf.Float64Var(&simulateFlags.diam, "diam", def.Diam, "Dendrite diameter in um")
	pf.Float64Var(&simulateFlags.ra, "ra", def.Ra, "Dendrite axial resistivity in ohm cm")
	pf.Float64Var(&simulateFlags.cm, "cm", def.Cm, "Dendrite capacitance in uF/cm2")

	uf := simulatePulsesCmd.Flags()
	uf.Float64SliceVar(&simulateFlags.amps, "amps", []float64{0.1, 0.3, 0.5}, "Pulse amplitudes in nA")
	uf.StringVar(&simulateFlags.swc, "swc", "", "SWC morphology (default: ball-and-stick)")

	simulateCmd.AddCommand(simulatePassiveCmd, simulatePulsesCmd, simulateFileCmd)
}

// writeRecording writes rec as JSON or as CSV columns time, then one per voltage trace
func writeRecording(w io.Writer, rec models.Recording) error {
	switch rootFlags.format {
	case "csv":
		set := &traces.SweepSet{Time: rec.Time, Sweeps: rec.Voltages}
		return set.WriteCSV(w)
	case "json":
		return writeJSON(w, rec)
	default:
		return fmt.Errorf("unknown format %q", rootFlags.format)
	}
}

func runSimulatePassive(cmd *cobra.Command, args []string) error {
	p := protocol.PassiveParams{Diam: simulateFlags.diam, Ra: simulateFlags.ra, Cm: simulateFlags.cm}
	rec, err := protocol.PassiveProperties(p, simOptions()...)
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error { return writeRecording(w, rec) })
}

// loadCell builds the cell from an SWC file, or the ball-and-stick model when path is empty
func loadCell(path string) (*sim.Cell, error) {
	if path == "" {
		return sim.BallAndStick(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := morphology.ReadSWC(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m.Build(path, morphology.DefaultBiophysics())
}

func runSimulatePulses(cmd *cobra.Command, args []string) error {
	cell, err := loadCell(simulateFlags.swc)
	if err != nil {
		return err
	}
	log.Debug().Floats64("amps", simulateFlags.amps).Int("sections", len(cell.Sections())).Msg("Running square pulses")
	set, err := protocol.SquarePulses(simulateFlags.amps, cell, simOptions()...)
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error {
		switch rootFlags.format {
		case "csv":
			return set.WriteCSV(w)
		case "json":
			return writeJSON(w, set)
		default:
			return fmt.Errorf("unknown format %q", rootFlags.format)
		}
	})
}

func runSimulateFile(cmd *cobra.Command, args []string) error {
	f, err := protocol.LoadFile(args[0])
	if err != nil {
		return err
	}
	rec, err := f.Run(simOptions()...)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return withOutput(func(w io.Writer) error { return writeRecording(w, rec) })
}
