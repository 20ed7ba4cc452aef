package cli

import (
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a scripted scenario through the rules and print the output",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context())
	},
}
