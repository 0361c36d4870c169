package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders documents into CSV bytes. Sectioned layouts flatten into
// consecutive row groups separated by blank rows.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the document.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if doc.Title != "" {
		if err := writer.Write([]string{doc.Title}); err != nil {
			return nil, fmt.Errorf("write csv title: %w", err)
		}
	}

	for _, section := range doc.Sections {
		if err := writeSection(writer, section); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(writer *csv.Writer, section Section) error {
	switch s := section.(type) {
	case Heading:
		if err := writer.Write([]string{s.Text}); err != nil {
			return fmt.Errorf("write csv heading: %w", err)
		}
	case KeyValues:
		for _, pair := range s.Pairs {
			if err := writer.Write([]string{pair.Label, pair.Value}); err != nil {
				return fmt.Errorf("write csv pair: %w", err)
			}
		}
	case Table:
		if s.Caption != "" {
			if err := writer.Write([]string{s.Caption}); err != nil {
				return fmt.Errorf("write csv caption: %w", err)
			}
		}
		if len(s.Headers) == 0 {
			return fmt.Errorf("csv table requires at least one header")
		}
		if err := writer.Write(s.Headers); err != nil {
			return fmt.Errorf("write csv headers: %w", err)
		}
		for _, row := range s.Rows {
			record := make([]string, len(s.Headers))
			copy(record, row)
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	case Separator:
		if err := writer.Write([]string{""}); err != nil {
			return fmt.Errorf("write csv separator: %w", err)
		}
	default:
		return fmt.Errorf("unsupported csv section %T", section)
	}
	return nil
}
