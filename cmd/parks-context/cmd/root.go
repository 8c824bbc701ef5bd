// Package cmd provides the CLI commands for parks-context.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

var (
	envFile     string
	logLevel    string
	logJSON     bool
	noTimestamp bool
	port        string
)

// rootCmd runs the HTTP server.
var rootCmd = &cobra.Command{
	Use:   "parks-context",
	Short: "Serve park, weather and air quality context",
	Long: `parks-context brokers National Park Service data, current weather and
air quality behind one resilient API with retries, rate limiting and
provider fallback.

Examples:
  parks-context --port 8080
  parks-context --log-level debug --log-json
  parks-context version`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd)
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs")
	rootCmd.PersistentFlags().BoolVar(&noTimestamp, "no-timestamp", false, "omit timestamps from log lines")
	rootCmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides PORT)")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "parks-context version %s\n", Version)
	},
}
