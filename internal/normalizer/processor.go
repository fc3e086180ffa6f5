// Package normalizer turns a batch of scraped records into the clean table
// that is uploaded as a dataset split.
package normalizer

import (
	"fmt"
)

// Processor handles data processing and transformation.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
	}
}

// Process loads the source and returns the normalized table.
func (p *Processor) Process(src Source) (*Table, error) {
	table, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}

	return p.ProcessTable(table)
}

// ProcessTable normalizes a table in place.
func (p *Processor) ProcessTable(table *Table) (*Table, error) {
	// 1. Validate the input data
	if err := p.validator.Validate(table); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// 2. Drop rows without any value
	p.validator.DropEmptyRows(table)

	// 3. Transform the data
	return p.transformer.Transform(table), nil
}
