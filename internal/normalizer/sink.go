package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EncodeJSONL writes one JSON object per row. Markup in text is kept as is.
func EncodeJSONL(t *Table) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, row := range t.Rows {
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("failed to encode row %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// EncodeJSON writes the rows as an indented JSON array.
func EncodeJSON(t *Table) ([]byte, error) {
	rows := t.Rows
	if rows == nil {
		rows = []Row{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(rows); err != nil {
		return nil, fmt.Errorf("failed to encode table: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteFile saves t to path, as JSON Lines when the extension is .jsonl and
// as a JSON array otherwise.
func WriteFile(path string, t *Table) error {
	var (
		data []byte
		err  error
	)

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		data, err = EncodeJSONL(t)
	} else {
		data, err = EncodeJSON(t)
	}

	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
