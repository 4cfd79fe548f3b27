package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var apiURL string

	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Client for the watermark pipeline API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultAPI := os.Getenv("WATERMARK_API_URL")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "Pipeline API base URL")

	rootCmd.AddCommand(newRunCommand(&apiURL))
	rootCmd.AddCommand(newProgressCommand(&apiURL))
	rootCmd.AddCommand(newDownloadCommand(&apiURL))
	rootCmd.AddCommand(newCleanupCommand(&apiURL))

	return rootCmd
}
