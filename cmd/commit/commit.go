// Package commit provides the command that commits the detection file once.
package commit

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-listener/internal/autocommit"
	"github.com/tphakala/birdnet-listener/internal/conf"
)

// Command creates the commit command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the detection file to git now",
		Long:  "Stage and commit the detection file, the same step the hourly auto-commit task runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			task := autocommit.New(autocommit.ConfigFromSettings(settings))
			result, err := task.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("csv", "", "Path to the detection CSV file")
	flags.String("repo", "", "Git work tree, defaults to the directory of the detection file")
	conf.BindFlag(flags, "csv", "output.csv.path")
	conf.BindFlag(flags, "repo", "autocommit.repodir")

	return cmd
}
