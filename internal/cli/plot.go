package cli

import (
	"github.com/spf13/cobra"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot last trade price over time (default command)",
	Args:  cobra.NoArgs,
	RunE:  runPlot,
}

func runPlot(cmd *cobra.Command, args []string) error {
	return getApp().Plot(cmd.Context())
}
