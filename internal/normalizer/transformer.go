package normalizer

import (
	"sort"
	"strings"
)

// Transformer applies the dataset cleanup rules. Applying it twice gives
// the same table as applying it once.
type Transformer struct {
	lineEndings *strings.Replacer
}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{
		lineEndings: strings.NewReplacer("\r\n", "\n", "\r", "\n"),
	}
}

// Transform fills missing text columns, normalizes text and title, coerces
// the document number to a string and sorts rows by it (lexicographically).
// t is modified in place and returned.
func (tr *Transformer) Transform(t *Table) *Table {
	for _, col := range append(append([]string(nil), TextColumns...), ColDocumentNo) {
		if !t.HasColumn(col) {
			t.Columns = append(t.Columns, col)
		}
	}

	for _, row := range t.Rows {
		for _, col := range TextColumns {
			row[col] = Stringify(row[col])
		}

		row[ColText] = strings.TrimSpace(tr.lineEndings.Replace(row[ColText].(string)))
		row[ColTitle] = strings.TrimSpace(row[ColTitle].(string))
		row[ColDocumentNo] = Stringify(row[ColDocumentNo])
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i][ColDocumentNo].(string) < t.Rows[j][ColDocumentNo].(string)
	})

	return t
}
