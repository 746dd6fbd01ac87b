// Package export provides the command that writes CSV extracts of the detection file.
package export

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/stats"
)

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write last hour, day and week extracts and hourly counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.NewStore(settings.Output.CSV.Path)
			records, err := store.ReadAll()
			if err != nil {
				return err
			}

			exp := &stats.Exporter{Dir: outDir, Loc: time.Local}
			if err := exp.Export(records, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d detections to %s\n", len(records), outDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outDir, "out", "o", "export", "Output directory")
	flags.String("csv", "", "Path to the detection CSV file")
	conf.BindFlag(flags, "csv", "output.csv.path")

	return cmd
}
