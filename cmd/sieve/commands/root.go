// Package commands implements the CLI commands for sieve.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/use-agent/sieve/config"
)

// v holds every setting: defaults, SIEVE_* environment, config file, flags.
var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "Adaptive web scraper that returns typed page sections",
	Long: `Sieve fetches a page statically, renders it in headless Chrome only when
the static document looks like an unrendered app shell, and returns the page
as typed, labeled sections with normalized content.

Examples:
  # Run the HTTP API
  sieve serve --port 8080

  # Scrape one page and print YAML
  sieve scrape https://example.com --output yaml

  # Never start a browser
  sieve scrape https://example.com --mode static`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default ./sieve.yaml or $HOME/.sieve.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json, text")
	rootCmd.PersistentFlags().String("static-engine", "", "static transport: http, colly")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("fetch.static_engine", rootCmd.PersistentFlags().Lookup("static-engine"))
}

func initConfig() {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName("sieve")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "Error: reading config: %v\n", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
