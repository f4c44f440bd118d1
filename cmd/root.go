// Package cmd wires the cobra command tree (spec §4, §6): a root command
// plus realtime and analyze subcommands, with global flags bound through
// viper the same way each subcommand binds its own.
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/cmd/analyze"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/cmd/realtime"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/conf"
)

// RootCommand builds the "gamecalls" CLI around the loaded settings.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gamecalls",
		Short: "Game call similarity engine CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	realtimeCmd := realtime.Command(settings)
	analyzeCmd := analyze.Command(settings)

	rootCmd.AddCommand(realtimeCmd, analyzeCmd)

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().IntVar(&settings.SampleRateHz, "sample-rate", viper.GetInt("sample_rate_hz"), "Audio sample rate in Hz")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.MasterCallsPath, "master-calls-path", viper.GetString("storage.master_calls_path"), "Directory of source master-call WAV files")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.FeaturesPath, "features-path", viper.GetString("storage.features_path"), "Directory of cached master-call feature files")
	rootCmd.PersistentFlags().StringVar(&settings.Log.Level, "log-level", viper.GetString("log.level"), "Log level: trace, debug, info, warn, error")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
