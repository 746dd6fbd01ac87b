// Package realtime provides the command for live microphone analysis.
package realtime

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-listener/internal/analysis"
	"github.com/tphakala/birdnet-listener/internal/conf"
)

// Command creates the command for real-time audio analysis.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Analyze audio in realtime mode",
		Long:  "Capture audio from the configured device, classify it window by window and serve the dashboard.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings)
		},
	}

	setupFlags(cmd)

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("source", "", "Audio capture source (\"sysdefault\", \"USB Audio\", etc.)")
	flags.Float64("threshold", 0, "Minimum confidence for a detection to be stored")
	flags.String("csv", "", "Path to the detection CSV file")
	flags.String("listen", "", "Listen address of the dashboard")
	flags.Bool("web", true, "Serve the dashboard")
	flags.Bool("autocommit", false, "Commit the detection file to git every hour")
	flags.Bool("telemetry", false, "Expose Prometheus metrics on /metrics")

	conf.BindFlag(flags, "source", "audio.source")
	conf.BindFlag(flags, "threshold", "filter.threshold")
	conf.BindFlag(flags, "csv", "output.csv.path")
	conf.BindFlag(flags, "listen", "webserver.listen")
	conf.BindFlag(flags, "web", "webserver.enabled")
	conf.BindFlag(flags, "autocommit", "autocommit.enabled")
	conf.BindFlag(flags, "telemetry", "telemetry.enabled")
}
