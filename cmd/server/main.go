/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the batch poster: serves the HTTP API, runs
  batch files directly, prints request templates, and creates data files.

COMMANDS:
  serve                 HTTP server with graceful shutdown
  run <batch.json>      Run one batch file, print the response as JSON
  templates [action]    Print request templates (all actions, or one)
  init-db               Create a company data file

GLOBAL FLAGS:
  --config      Optional YAML configuration file
  --env-file    .env file loaded before configuration (default: .env)
  --data-file   Overrides ENGINE_DATA_FILE

CONFIGURATION:
  defaults < YAML file < environment (.env included) < --data-file.
  See config/config.go for the keys.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for the running batch to finish (shutdown timeout)
  3. Exit

EXAMPLES:
  ./server init-db --path ./data/company.db --company "Acme Ltd" --user admin --password secret
  ./server serve --data-file ./data/company.db
  ./server run batch.json --user admin --password secret --xlsx results.xlsx
  ./server templates create_sales_invoice

SEE ALSO:
  - api/server.go: Router configuration
  - poster/poster.go: Batch orchestration
  - store/sqlite/sqlite.go: Reference engine
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warp/sage-poster/config"
	"github.com/warp/sage-poster/logging"
)

var (
	cfgFile  string
	envFile  string
	dataFile string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Batch poster for an accounting data file",
	Long: `Posts batches of create, adjust, lookup and void operations against a
company data file. Each batch opens the file once, processes its items in
order, and reports one result per routable item.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil {
			if cmd.Flags().Changed("env-file") {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
		if dataFile != "" {
			return os.Setenv("ENGINE_DATA_FILE", dataFile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&dataFile, "data-file", "", "company data file (overrides ENGINE_DATA_FILE)")

	rootCmd.AddCommand(serveCmd, runCmd, templatesCmd, initDBCmd)
}

// loadConfig loads configuration and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
