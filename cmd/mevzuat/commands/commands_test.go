package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mevzuat/internal/config"
)

func TestParseSplitArgs(t *testing.T) {
	sources, err := parseSplitArgs([]string{"train=out/a.json", " test =out/b.jsonl"})
	require.NoError(t, err)

	require.Len(t, sources, 2)
	assert.Equal(t, "out/a.json", sources["train"].Path)
	assert.Equal(t, "out/b.jsonl", sources["test"].Path)
}

func TestParseSplitArgs_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"train"},
		{"=out/a.json"},
		{"train="},
		{"train=a.json", "train=b.json"},
	} {
		_, err := parseSplitArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestApplyWorkerFlags_OnlyChanged(t *testing.T) {
	require.NoError(t, workerCmd.Flags().Parse([]string{"--types", "Kanun,KHK", "--max-pages", "3"}))

	cfg := config.Default()
	cfg.Ingest.PageLength = 50

	applyWorkerFlags(workerCmd, &cfg)

	assert.Equal(t, []string{"Kanun", "KHK"}, cfg.Ingest.DocumentTypes)
	assert.Equal(t, 3, cfg.Ingest.MaxPages)
	assert.Equal(t, 50, cfg.Ingest.PageLength)
	assert.False(t, cfg.Ingest.Upload)
}
