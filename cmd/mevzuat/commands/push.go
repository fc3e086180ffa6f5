package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mevzuat/internal/config"
	"mevzuat/internal/hub"
	"mevzuat/internal/normalizer"
)

var (
	pushRepo    string
	pushSplit   string
	pushMessage string
	pushPrivate bool
	pushUpdate  bool
)

func init() {
	addPushFlags(pushCmd)
	pushCmd.Flags().StringVar(&pushSplit, "split", "", "Split name (overrides hub.split).")
	pushCmd.Flags().BoolVar(&pushUpdate, "update", false, "Update an existing public dataset instead of a fresh push.")
	rootCmd.AddCommand(pushCmd)
}

func addPushFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pushRepo, "repo", "", "Dataset repository namespace/name (overrides hub.repo_id).")
	cmd.Flags().StringVarP(&pushMessage, "message", "m", "", "Commit message.")
	cmd.Flags().BoolVar(&pushPrivate, "private", false, "Create the repository as private (overrides hub.private).")
}

func applyPushFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("repo") {
		cfg.Hub.RepoID = pushRepo
	}
	if flags.Changed("message") {
		cfg.Hub.CommitMessage = pushMessage
	}
	if flags.Changed("private") {
		cfg.Hub.Private = pushPrivate
	}
	if flags.Changed("split") {
		cfg.Hub.Split = pushSplit
	}
}

// setupUploader loads the config with the push flags applied.
func setupUploader(cmd *cobra.Command) (*config.Config, *hub.Uploader, error) {
	cfg, log, err := setupCommand(func(cfg *config.Config) {
		applyPushFlags(cmd, cfg)
	})
	if err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(cfg.Hub.RepoID) == "" {
		return nil, nil, usageError(cmd, "a repository is required (--repo or hub.repo_id)")
	}

	uploader, err := hub.NewUploader(cfg.Hub, log)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set %s)", err, cfg.Hub.TokenEnv)
	}

	return cfg, uploader, nil
}

var pushCmd = &cobra.Command{
	Use:   "push <batch.json|batch.jsonl> --repo <namespace/name>",
	Short: "Normalizes a batch file and pushes it to the hub as one split.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, uploader, err := setupUploader(cmd)
		if err != nil {
			return err
		}

		src := normalizer.FromFile(args[0])

		var url string
		if pushUpdate {
			url, err = uploader.UpdateDataset(cmd.Context(), src, cfg.Hub.RepoID, cfg.Hub.Split, cfg.Hub.CommitMessage)
		} else {
			url, err = uploader.PushData(cmd.Context(), src, hub.PushOptions{
				RepoID:        cfg.Hub.RepoID,
				Split:         cfg.Hub.Split,
				CommitMessage: cfg.Hub.CommitMessage,
				Private:       cfg.Hub.Private,
			})
		}

		if err != nil {
			return err
		}

		fmt.Printf("✅ Dataset available at %s\n", url)

		return nil
	},
}
