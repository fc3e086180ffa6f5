package hub

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mevzuat/internal/formatter"
	"mevzuat/internal/normalizer"
)

const (
	previewRows  = 5
	previewWidth = 60
)

var previewColumns = []string{
	normalizer.ColDocumentNo,
	normalizer.ColTitle,
	normalizer.ColType,
	normalizer.ColGazetteDate,
}

type cardMeta struct {
	Language    []string    `yaml:"language"`
	PrettyName  string      `yaml:"pretty_name"`
	Tags        []string    `yaml:"tags"`
	Configs     []cardConf  `yaml:"configs"`
	DatasetInfo datasetInfo `yaml:"dataset_info"`
}

type cardConf struct {
	ConfigName string     `yaml:"config_name"`
	DataFiles  []dataFile `yaml:"data_files"`
}

type dataFile struct {
	Split string `yaml:"split"`
	Path  string `yaml:"path"`
}

type datasetInfo struct {
	Features []feature   `yaml:"features"`
	Splits   []splitInfo `yaml:"splits,omitempty"`
}

type feature struct {
	Name  string `yaml:"name"`
	DType string `yaml:"dtype"`
}

type splitInfo struct {
	Name        string `yaml:"name"`
	NumExamples int    `yaml:"num_examples"`
}

// DatasetCard renders README.md for the given splits. Split sizes are
// listed only when counted is true; sharded uploads leave them out because
// a single commit sees one shard.
func DatasetCard(repoID string, splits map[string]*normalizer.Table, counted bool) (string, error) {
	names := make([]string, 0, len(splits))
	for name := range splits {
		names = append(names, name)
	}

	sort.Strings(names)

	meta := cardMeta{
		Language:   []string{"tr"},
		PrettyName: "Turkish Legislation (mevzuat.gov.tr)",
		Tags:       []string{"legal", "legislation", "turkish", "mevzuat"},
		Configs:    []cardConf{{ConfigName: "default"}},
	}

	for _, col := range normalizer.Columns {
		meta.DatasetInfo.Features = append(meta.DatasetInfo.Features, feature{Name: col, DType: "string"})
	}

	total := 0

	for _, name := range names {
		meta.Configs[0].DataFiles = append(meta.Configs[0].DataFiles, dataFile{
			Split: name,
			Path:  "data/" + name + "-*",
		})

		n := splits[name].Len()
		total += n

		if counted {
			meta.DatasetInfo.Splits = append(meta.DatasetInfo.Splits, splitInfo{Name: name, NumExamples: n})
		}
	}

	front, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode card metadata: %w", err)
	}

	var body strings.Builder

	fmt.Fprintf(&body, "# %s\n\n", repoID)
	body.WriteString("Turkish legislation scraped from mevzuat.gov.tr with full document text.\n\n")
	body.WriteString("## Splits\n\n")

	splitRows := make([][]string, 0, len(names))
	for _, name := range names {
		splitRows = append(splitRows, []string{name, fmt.Sprint(splits[name].Len())})
	}

	body.WriteString(formatter.Table([]string{"split", "documents"}, splitRows, 0))
	body.WriteString("\n\n")

	if counted {
		fmt.Fprintf(&body, "Total documents: %d\n\n", total)
	}

	if len(names) > 0 {
		if preview := previewTable(splits[names[0]]); preview != "" {
			fmt.Fprintf(&body, "## Preview (%s)\n\n%s\n", names[0], preview)
		}
	}

	return "---\n" + string(front) + "---\n\n" + formatter.FormatMarkdown(body.String()), nil
}

func previewTable(t *normalizer.Table) string {
	if t.Len() == 0 {
		return ""
	}

	n := min(t.Len(), previewRows)
	rows := make([][]string, 0, n)

	for _, row := range t.Rows[:n] {
		cells := make([]string, len(previewColumns))
		for i, col := range previewColumns {
			cells[i] = normalizer.Stringify(row[col])
		}

		rows = append(rows, cells)
	}

	return formatter.Table(previewColumns, rows, previewWidth)
}
