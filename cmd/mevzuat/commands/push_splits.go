package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mevzuat/internal/hub"
	"mevzuat/internal/normalizer"
)

var pushSplitsCmd = &cobra.Command{
	Use:   "push-splits <split=file> [<split=file>...] --repo <namespace/name>",
	Short: "Pushes several batch files as named splits in one commit.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := parseSplitArgs(args)
		if err != nil {
			return usageError(cmd, "%v", err)
		}

		cfg, uploader, err := setupUploader(cmd)
		if err != nil {
			return err
		}

		url, err := uploader.PushSplits(cmd.Context(), sources, hub.PushOptions{
			RepoID:        cfg.Hub.RepoID,
			CommitMessage: cfg.Hub.CommitMessage,
			Private:       cfg.Hub.Private,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✅ Dataset available at %s (%d splits)\n", url, len(sources))

		return nil
	},
}

func init() {
	addPushFlags(pushSplitsCmd)
	rootCmd.AddCommand(pushSplitsCmd)
}

func parseSplitArgs(args []string) (map[string]normalizer.Source, error) {
	sources := make(map[string]normalizer.Source, len(args))

	for _, arg := range args {
		split, path, ok := strings.Cut(arg, "=")
		split = strings.TrimSpace(split)

		if !ok || split == "" || path == "" {
			return nil, fmt.Errorf("expected split=file, got %q", arg)
		}

		if _, dup := sources[split]; dup {
			return nil, fmt.Errorf("split %q given twice", split)
		}

		sources[split] = normalizer.FromFile(path)
	}

	return sources, nil
}
