package formatter

import (
	"strings"
	"testing"
)

func TestFormatMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "Basic table formatting",
			input: `
| Header 1 | Header 2 |
| --- | --- |
| val 1 | val 2 |
`,
			expected: `
| Header 1 | Header 2 |
| -------- | -------- |
| val 1    | val 2    |
`,
		},
		{
			name: "Fix excessive dashes",
			input: `
| Col A | Col B |
| ---------------------- | ---------------------------------- |
| A | B |
`,
			expected: `
| Col A | Col B |
| ----- | ----- |
| A     | B     |
`,
		},
		{
			name: "Mixed content",
			input: `
# Başlık

| H1 | H2 |
| -- | -- |
| v1 | v2 |

Text after table.
`,
			expected: `
# Başlık

| H1  | H2  |
| --- | --- |
| v1  | v2  |

Text after table.
`,
		},
		{
			name: "Turkish letters are single width",
			input: `
| No | Ad |
| --- | --- |
| 5237 | Türk Ceza Kanunu |
| 1 | Şirket |
`,
			expected: `
| No   | Ad               |
| ---- | ---------------- |
| 5237 | Türk Ceza Kanunu |
| 1    | Şirket           |
`,
		},
		{
			name: "Wide characters",
			input: `
| Date | Event |
| --- | --- |
| 2025-01-01 | 法律文本 |
| 2025-01-02 | Short text |
`,
			expected: `
| Date       | Event      |
| ---------- | ---------- |
| 2025-01-01 | 法律文本   |
| 2025-01-02 | Short text |
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatMarkdown(strings.TrimSpace(tt.input))

			if strings.TrimSpace(got) != strings.TrimSpace(tt.expected) {
				t.Errorf("FormatMarkdown() = \n%v\nwant \n%v", got, tt.expected)
			}
		})
	}
}

func TestTable(t *testing.T) {
	got := Table(
		[]string{"mevzuat_no", "title"},
		[][]string{
			{"1", "Kanun | Ek"},
			{"5237", "Türk Ceza\nKanunu ve uzun bir başlık"},
		},
		16,
	)

	want := strings.Join([]string{
		`| mevzuat_no | title            |`,
		`| ---------- | ---------------- |`,
		`| 1          | Kanun \| Ek      |`,
		`| 5237       | Türk Ceza Kanun… |`,
	}, "\n")

	if got != want {
		t.Errorf("Table() = \n%s\nwant \n%s", got, want)
	}
}

func TestTable_NoRows(t *testing.T) {
	got := Table([]string{"a"}, nil, 0)
	want := "| a   |\n| --- |"

	if got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}
