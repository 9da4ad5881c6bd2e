package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/RMahshie/cellular/internal/morphology"
)

var morphFlags struct {
	swc string
}

var morphCmd = &cobra.Command{
	Use:   "morph",
	Short: "Morphology utilities",
}

var morphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a cell's morphology as SWC",
	Long: `Build a cell (from --swc, or the ball-and-stick model) and write its sections
back out as SWC points, one point per shape point or per section end.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cell, err := loadCell(morphFlags.swc)
		if err != nil {
			return err
		}
		return withOutput(func(w io.Writer) error { return morphology.WriteSWC(w, cell) })
	},
}

func init() {
	morphExportCmd.Flags().StringVar(&morphFlags.swc, "swc", "", "SWC morphology to rebuild (default: ball-and-stick)")
	morphCmd.AddCommand(morphExportCmd)
}
