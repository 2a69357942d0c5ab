package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth    = 277.0
	marginX      = 10.0
	marginTop    = 12.0
	marginBottom = 12.0
	lineHeight   = 5.0
)

// Section is one titled table inside a document, e.g. one teacher's weekly plan.
type Section struct {
	Heading    string
	Subheading string
	Data       Dataset
	// Weights sizes the columns relative to each other; equal widths when empty.
	Weights []float64
}

// Document is a multi-section report.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// PDFExporter renders documents as landscape A4 tables with wrapped cells.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates the PDF. Every section starts on the current page and wraps onto new pages as needed.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}
	for i, section := range doc.Sections {
		if err := section.Data.validate(); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.SetAutoPageBreak(false, marginBottom)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 8, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	for _, section := range doc.Sections {
		widths := columnWidths(len(section.Data.Headers), section.Weights)
		ensureSpace(pdf, 20)
		if section.Heading != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 7, tr(section.Heading), "", 1, "L", false, 0, "")
		}
		if section.Subheading != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 5, tr(section.Subheading), "", 1, "L", false, 0, "")
		}
		writeRow(pdf, tr, section.Data.Headers, widths, true)
		for _, row := range section.Data.Rows {
			cells := make([]string, len(widths))
			copy(cells, row)
			if ensureSpace(pdf, rowHeight(pdf, tr, cells, widths)) {
				writeRow(pdf, tr, section.Data.Headers, widths, true)
			}
			writeRow(pdf, tr, cells, widths, false)
		}
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns int, weights []float64) []float64 {
	widths := make([]float64, columns)
	total := 0.0
	for i := range widths {
		w := 1.0
		if i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		widths[i] = w
		total += w
	}
	for i := range widths {
		widths[i] = widths[i] / total * pageWidth
	}
	return widths
}

func setRowFont(pdf *gofpdf.Fpdf, header bool) {
	if header {
		pdf.SetFont("Arial", "B", 9)
		return
	}
	pdf.SetFont("Arial", "", 9)
}

func rowHeight(pdf *gofpdf.Fpdf, tr func(string) string, cells []string, widths []float64) float64 {
	setRowFont(pdf, false)
	lines := 1
	for i, cell := range cells {
		n := len(pdf.SplitLines([]byte(tr(cell)), widths[i]-2))
		if n > lines {
			lines = n
		}
	}
	return float64(lines)*lineHeight + 2
}

// ensureSpace starts a new page when height does not fit and reports whether it did.
func ensureSpace(pdf *gofpdf.Fpdf, height float64) bool {
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+height <= pageHeight-marginBottom {
		return false
	}
	pdf.AddPage()
	return true
}

func writeRow(pdf *gofpdf.Fpdf, tr func(string) string, cells []string, widths []float64, header bool) {
	height := rowHeight(pdf, tr, cells, widths)
	setRowFont(pdf, header)
	x, y := pdf.GetXY()
	for i, cell := range cells {
		if header {
			pdf.SetFillColor(230, 230, 230)
			pdf.Rect(x, y, widths[i], height, "FD")
		} else {
			pdf.Rect(x, y, widths[i], height, "D")
		}
		pdf.SetXY(x+1, y+1)
		pdf.MultiCell(widths[i]-2, lineHeight, tr(cell), "", "L", false)
		x += widths[i]
		pdf.SetXY(x, y)
	}
	pdf.SetXY(marginX, y+height)
}
