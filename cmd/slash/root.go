package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/config"
	"jordanella.com/slash-go/internal/logging"
)

var (
	settingsPath string
	verbose      bool
	version      = "dev"

	// settings is loaded before any subcommand runs
	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "slash",
	Short: "Record and replay tap macros with stamina-aware pausing",
	Long: `slash records tap sequences, stores them as named macros and replays
them with their original timing. A monitored replay samples the macro's
monitor region, classifies the stamina gauge and pauses for recovery when
stamina runs low.

Quick Start:
  slash record farm --region 10,10,120,24   # type "x y" lines, Ctrl-D to stop
  slash replay farm --monitored             # replay with the state monitor
  slash macros list                         # show saved macros
  slash history                             # recent replay sessions`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrCreate(settingsPath)
		if err != nil {
			return err
		}
		settings = cfg

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.Init(level, cfg.Logging.Format)
		return nil
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "Settings.ini", "Settings file (created with defaults if missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
