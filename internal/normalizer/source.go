package normalizer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mevzuat/internal/models"
)

// Source errors.
var (
	ErrEmptySource     = errors.New("source has no records, path or table")
	ErrAmbiguousSource = errors.New("source must set exactly one of records, path or table")
)

// Source is a batch given as records, a JSON or JSON Lines file, or a table.
type Source struct {
	Table   *Table
	Path    string
	Records []models.Record
}

// FromRecords wraps a record slice.
func FromRecords(records []models.Record) Source {
	if records == nil {
		records = []models.Record{}
	}

	return Source{Records: records}
}

// FromFile wraps a path to a JSON array or a .jsonl file.
func FromFile(path string) Source {
	return Source{Path: path}
}

// FromTable wraps an already tabular batch.
func FromTable(t *Table) Source {
	return Source{Table: t}
}

// Load turns the source into a table. The result never aliases the input.
func (s Source) Load() (*Table, error) {
	set := 0
	if s.Records != nil {
		set++
	}
	if s.Path != "" {
		set++
	}
	if s.Table != nil {
		set++
	}

	switch {
	case set == 0:
		return nil, ErrEmptySource
	case set > 1:
		return nil, ErrAmbiguousSource
	case s.Records != nil:
		return TableFromRecords(s.Records), nil
	case s.Table != nil:
		return s.Table.Clone(), nil
	default:
		return loadFile(s.Path)
	}
}

func loadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rows []Row
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		rows, err = decodeLines(data)
	} else {
		rows, err = decodeArray(data)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &Table{Columns: columnsOf(rows), Rows: rows}, nil
}

func decodeArray(data []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}

	return rows, nil
}

func decodeLines(data []byte) ([]Row, error) {
	var rows []Row

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()

		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rows = append(rows, row)
	}

	return rows, scanner.Err()
}

// columnsOf lists the canonical columns first, then any extra keys by name.
func columnsOf(rows []Row) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}

	cols := make([]string, 0, len(seen))
	for _, c := range Columns {
		if seen[c] {
			cols = append(cols, c)
			delete(seen, c)
		}
	}

	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}

	slices.Sort(extra)

	return append(cols, extra...)
}
