package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders documents into a tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const pdfPageWidth = 190.0

// Render creates a PDF document mirroring the section order of the layout.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	for _, section := range doc.Sections {
		if err := drawSection(pdf, section); err != nil {
			return nil, err
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSection(pdf *gofpdf.Fpdf, section Section) error {
	switch s := section.(type) {
	case Heading:
		size := 12.0
		if s.Level > 1 {
			size = 10.5
		}
		pdf.SetFont("Arial", "B", size)
		pdf.CellFormat(0, 8, s.Text, "", 1, "L", false, 0, "")
	case KeyValues:
		pdf.SetFont("Arial", "", 10)
		for _, pair := range s.Pairs {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(55, 7, pair.Label, "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 7, pair.Value, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	case Table:
		if len(s.Headers) == 0 {
			return fmt.Errorf("pdf table requires at least one header")
		}
		if s.Caption != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, s.Caption, "", 1, "L", false, 0, "")
		}
		colWidth := pdfPageWidth / float64(len(s.Headers))
		pdf.SetFont("Arial", "B", 10)
		for _, header := range s.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range s.Rows {
			for i := range s.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(2)
	case Separator:
		pdf.Ln(1)
		x, y := pdf.GetXY()
		pdf.Line(x, y, x+pdfPageWidth, y)
		pdf.Ln(3)
	default:
		return fmt.Errorf("unsupported pdf section %T", section)
	}
	return nil
}
