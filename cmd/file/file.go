// Package file provides the command for analyzing a recorded WAV file.
package file

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-listener/internal/analysis"
	"github.com/tphakala/birdnet-listener/internal/conf"
)

// startLayouts are accepted by --start, tried in order.
var startLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// Command creates the file command.
func Command(settings *conf.Settings) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "file [input.wav|input.flac]",
		Short: "Analyze an audio file",
		Long:  "Classify a recorded WAV or FLAC file and append the detections to the detection file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime, err := parseStart(start)
			if err != nil {
				return err
			}
			res, err := analysis.FileAnalysis(cmd.Context(), settings, args[0], startTime)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s of audio, %d windows, %d detections stored, %d failed, took %s\n",
				args[0], res.Info.Duration.Round(time.Second), res.Health.Processed+res.Health.Failed,
				res.Health.Stored, res.Health.Failed, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&start, "start", "", "Wall clock time of the first sample, defaults to the file modification time")
	flags.Float64("threshold", 0, "Minimum confidence for a detection to be stored")
	flags.String("csv", "", "Path to the detection CSV file")
	conf.BindFlag(flags, "threshold", "filter.threshold")
	conf.BindFlag(flags, "csv", "output.csv.path")

	return cmd
}

// parseStart parses --start as local time unless it carries an offset.
func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --start %q, expected RFC3339 or YYYY-MM-DDTHH:MM:SS", s)
}
