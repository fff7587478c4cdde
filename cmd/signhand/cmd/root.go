package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "signhand",
	Short: "Signhand is a document signing service",
	Long: `A document signing service that keeps user certificates encrypted at rest
and coordinates single and multi-party signature requests.
Complete documentation is available at https://github.com/jmcleod/signhand`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
}
