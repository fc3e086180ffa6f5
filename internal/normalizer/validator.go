package normalizer

import (
	"errors"
	"strings"
)

// Validation errors.
var (
	ErrNilTable   = errors.New("table is nil")
	ErrNoColumns  = errors.New("table has rows but no columns")
	ErrNilRow     = errors.New("table contains a nil row")
	ErrRowTooWide = errors.New("row has a key that is not a table column")
)

// Validator checks table shape and prunes rows that carry no data.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks if the table can be normalized.
func (v *Validator) Validate(t *Table) error {
	if t == nil {
		return ErrNilTable
	}

	if len(t.Rows) > 0 && len(t.Columns) == 0 {
		return ErrNoColumns
	}

	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		cols[c] = true
	}

	for _, row := range t.Rows {
		if row == nil {
			return ErrNilRow
		}

		for k := range row {
			if !cols[k] {
				return ErrRowTooWide
			}
		}
	}

	return nil
}

// DropEmptyRows removes rows whose every cell is nil or blank and returns
// how many were removed.
func (v *Validator) DropEmptyRows(t *Table) int {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if !isEmptyRow(row) {
			kept = append(kept, row)
		}
	}

	dropped := len(t.Rows) - len(kept)
	t.Rows = kept

	return dropped
}

func isEmptyRow(row Row) bool {
	for _, v := range row {
		if strings.TrimSpace(Stringify(v)) != "" {
			return false
		}
	}

	return true
}
