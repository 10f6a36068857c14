package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amerfu/llmrouter/cmd/routerctl/commands"
)

var (
	apiURL     string
	outputJSON bool
	verbose    bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "routerctl",
		Short: "LLM router CLI",
		Long: `Send chat requests to a running LLM router, inspect its health and queue
depths, and validate router configuration files before deploying them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commands.SetAPIURL(apiURL)
			commands.SetOutputJSON(outputJSON)
			commands.SetVerbose(verbose)
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("ROUTER_URL", "http://localhost:8000"), "router base URL")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")

	rootCmd.AddCommand(commands.NewChatCommand())
	rootCmd.AddCommand(commands.NewHealthCommand())
	rootCmd.AddCommand(commands.NewStatsCommand())
	rootCmd.AddCommand(commands.NewLoadCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
