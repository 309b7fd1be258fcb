package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go.pilab.hu/gtgram/cmd/gtgramctl/client"
	"go.pilab.hu/gtgram/log"
)

var (
	appLogger log.Logger
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "gtgramctl",
	Short: "gtgramctl is a CLI tool to interact with the gtgram session API",
	Long:  `A command-line interface for logging in, inspecting and clearing sessions, and exercising the auto-provisioning flow of a running gtgram session server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		appLogger = log.NewZerologAdapter(level, true)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func apiClient() *client.Client {
	return client.New(serverURL)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the gtgram session server")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(sessionCmd)
}
