// Package cli implements the pledged command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustpledge/pledged/internal/daemon"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pledged",
	Short: "Pledge-credit marketplace server",
	Long: `pledged runs the TrustPledge marketplace backend: makers register
projects with a pledge-credit pool, contributors join to earn a pro-rata
share, and makers approve or reject each contribution request.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", daemon.DefaultConfigPath(),
		"Path to the TOML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marketplace API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.Load(configPath)
		if err != nil {
			return err
		}
		return daemon.Run(cfg)
	},
}

// ─── init ───────────────────────────────────────────────────────────────────

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists at %s", configPath)
		}
		if err := daemon.Save(daemon.DefaultConfig(), configPath); err != nil {
			return err
		}
		fmt.Println("Wrote", configPath)
		return nil
	},
}

// ─── version ────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pledged version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pledged", Version)
	},
}
