package command

import (
	"github.com/spf13/cobra"

	"github.com/tidepool-org/cardiac/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long:  "The serve command runs the HTTP service until it receives a termination signal",
	// Keep the log level of the environment
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		api.MainLoop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
