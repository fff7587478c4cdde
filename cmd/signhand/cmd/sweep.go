package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue signature requests once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(svc *services) error {
			report, err := svc.engine.ExpireDue(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		})
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
