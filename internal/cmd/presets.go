package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MeKo-Tech/grainmatch/internal/iso"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the ISO grain presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePresets(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func writePresets(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ISO\tINTENSITY\tSIZE\tROUGHNESS\tCOLOR\tLUMA\tCHROMA BIAS")
	for _, p := range iso.Presets() {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			p.Identifier, p.Params.Intensity, p.Params.Size, p.Params.Roughness,
			p.Params.ColorInfluence, p.Params.LumaInfluence, p.Params.ChromaBias)
	}
	return tw.Flush()
}
