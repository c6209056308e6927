package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	configFile  string
	noAutoStart bool
	jsonOutput  bool
	rootCmd     = &cobra.Command{
		Use:           "chapterd",
		Short:         "chapterd CLI - chapter download queue for manga and novels",
		Long:          `A command-line interface for the chapterd download server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:4567", "Server URL")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file passed to an auto-started server")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(addCmd, addBatchCmd, removeCmd, reorderCmd)
	rootCmd.AddCommand(statusCmd, startCmd, stopCmd, clearCmd)
	rootCmd.AddCommand(novelCmd, logsCmd, configCmd)
}

// client returns an API client, starting the server first unless
// --no-auto-start is set
func client() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return newAPIClient(serverURL)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
