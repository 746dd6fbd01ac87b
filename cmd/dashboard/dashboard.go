// Package dashboard provides the command that serves an existing detection file.
package dashboard

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-listener/internal/analysis"
	"github.com/tphakala/birdnet-listener/internal/conf"
)

// Command creates the dashboard command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the dashboard without capturing audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Dashboard(cmd.Context(), settings)
		},
	}

	flags := cmd.Flags()
	flags.String("csv", "", "Path to the detection CSV file")
	flags.String("listen", "", "Listen address of the dashboard")
	flags.Bool("telemetry", false, "Expose Prometheus metrics on /metrics")
	conf.BindFlag(flags, "csv", "output.csv.path")
	conf.BindFlag(flags, "listen", "webserver.listen")
	conf.BindFlag(flags, "telemetry", "telemetry.enabled")

	return cmd
}
