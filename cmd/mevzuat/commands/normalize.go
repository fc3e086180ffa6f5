package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mevzuat/internal/normalizer"
)

var normalizeOut string

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeOut, "out", "o", "", "Output file; .jsonl writes JSON Lines (default <input>.normalized.jsonl).")
	rootCmd.AddCommand(normalizeCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <batch.json|batch.jsonl> [--out <path>]",
	Short: "Cleans a batch file the same way the uploader does, without pushing it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := setupCommand(nil)
		if err != nil {
			return err
		}

		input := args[0]

		out := normalizeOut
		if out == "" {
			out = strings.TrimSuffix(input, filepath.Ext(input)) + ".normalized.jsonl"
		}

		if filepath.Clean(out) == filepath.Clean(input) {
			return usageError(cmd, "refusing to overwrite the input file")
		}

		table, err := normalizer.NewProcessor().Process(normalizer.FromFile(input))
		if err != nil {
			return err
		}

		if err := normalizer.WriteFile(out, table); err != nil {
			return err
		}

		log.Info("batch normalized", "input", input, "output", out, "rows", table.Len())
		fmt.Printf("Wrote %d rows to %s\n", table.Len(), out)

		return nil
	},
}
