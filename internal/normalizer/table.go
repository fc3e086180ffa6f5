package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"mevzuat/internal/models"
)

// Dataset column names.
const (
	ColTitle       = "title"
	ColURLParams   = "url_params"
	ColDocumentNo  = "mevzuat_no"
	ColGazetteDate = "resmi_gazete_tarihi"
	ColGazetteNo   = "resmi_gazete_sayisi"
	ColType        = "mevzuat_turu"
	ColText        = "text"
	ColURL         = "url"
)

// Columns is the canonical column order of a record table.
var Columns = []string{ColTitle, ColURLParams, ColDocumentNo, ColGazetteDate, ColGazetteNo, ColType, ColText, ColURL}

// TextColumns are filled with "" when missing.
var TextColumns = []string{ColText, ColTitle, ColURL, ColURLParams, ColType}

// Row is one table row keyed by column name. Values are whatever the source
// held: strings, json.Number, float64, bool or nil.
type Row map[string]any

// Table is an ordered set of rows sharing a column list.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Rows)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}

	return false
}

// Clone deep copies the table so transformations never alias the input.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}

	for i, row := range t.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}

		out.Rows[i] = cp
	}

	return out
}

// Records converts every row back into a record using the known columns.
func (t *Table) Records() []models.Record {
	records := make([]models.Record, 0, t.Len())
	for _, row := range t.Rows {
		records = append(records, models.Record{
			Title:        Stringify(row[ColTitle]),
			URLParams:    Stringify(row[ColURLParams]),
			DocumentNo:   Stringify(row[ColDocumentNo]),
			GazetteDate:  Stringify(row[ColGazetteDate]),
			GazetteNo:    Stringify(row[ColGazetteNo]),
			DocumentType: Stringify(row[ColType]),
			Text:         Stringify(row[ColText]),
			URL:          Stringify(row[ColURL]),
		})
	}

	return records
}

// TableFromRecords builds a table with the canonical columns.
func TableFromRecords(records []models.Record) *Table {
	t := &Table{
		Columns: append([]string(nil), Columns...),
		Rows:    make([]Row, 0, len(records)),
	}

	for _, rec := range records {
		t.Rows = append(t.Rows, Row{
			ColTitle:       rec.Title,
			ColURLParams:   rec.URLParams,
			ColDocumentNo:  rec.DocumentNo,
			ColGazetteDate: rec.GazetteDate,
			ColGazetteNo:   rec.GazetteNo,
			ColType:        rec.DocumentType,
			ColText:        rec.Text,
			ColURL:         rec.URL,
		})
	}

	return t
}

// Stringify renders a cell value as a string; nil becomes "".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
