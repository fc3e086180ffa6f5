package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mevzuat/internal/config"
	"mevzuat/internal/hub"
)

var infoCmd = &cobra.Command{
	Use:   "info [namespace/name]",
	Short: "Shows hub metadata for a dataset repository.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setupCommand(func(cfg *config.Config) {
			if len(args) == 1 {
				cfg.Hub.RepoID = args[0]
			}
		})
		if err != nil {
			return err
		}

		if cfg.Hub.RepoID == "" {
			return usageError(cmd, "a repository is required (argument or hub.repo_id)")
		}

		uploader, err := hub.NewUploader(cfg.Hub, log)
		if err != nil {
			return err
		}

		info, err := uploader.DatasetInfo(cmd.Context(), cfg.Hub.RepoID)
		if err != nil {
			return err
		}

		t := newTable()
		t.SetTitle(uploader.DatasetURL(cfg.Hub.RepoID))
		t.AppendRows([]table.Row{
			{"ID", info.ID},
			{"Private", info.Private},
			{"Downloads", info.Downloads},
			{"Likes", info.Likes},
			{"Tags", info.Tags},
			{"Created", info.CreatedAt.Format("2006-01-02 15:04:05")},
			{"Last modified", info.LastModified.Format("2006-01-02 15:04:05")},
		})
		t.Render()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
