package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-listener/cmd/commit"
	"github.com/tphakala/birdnet-listener/cmd/config"
	"github.com/tphakala/birdnet-listener/cmd/dashboard"
	"github.com/tphakala/birdnet-listener/cmd/export"
	"github.com/tphakala/birdnet-listener/cmd/file"
	"github.com/tphakala/birdnet-listener/cmd/realtime"
	"github.com/tphakala/birdnet-listener/internal/buildinfo"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var (
		central       *logger.CentralLogger
		stopTelemetry = func() {}
	)

	rootCmd := &cobra.Command{
		Use:           "birdnet-listener",
		Short:         "BirdNET listener",
		Long:          "Continuously classify bird sounds from a microphone, keep a detection log and serve a dashboard.",
		Version:       buildinfo.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		realtime.Command(settings),
		dashboard.Command(settings),
		file.Command(settings),
		export.Command(settings),
		commit.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flags of the command being run take precedence over the config file.
		if err := conf.BindFlags(cmd.Flags()); err != nil {
			return err
		}

		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		central, err = logger.NewCentralLogger(settings.LoggingConfig())
		if err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		logger.SetGlobal(central)

		stop, err := telemetry.Setup(settings)
		if err != nil {
			return err
		}
		stopTelemetry = stop
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		stopTelemetry()
		if central == nil {
			return nil
		}
		return central.Close()
	}

	return rootCmd
}

// setupFlags configures the flags shared by every command.
func setupFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&conf.ConfigFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	conf.BindFlag(rootCmd.PersistentFlags(), "debug", "debug")
}
