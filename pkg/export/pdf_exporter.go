package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 277.0
	laneHeight = 8.0
	labelWidth = 25.0
)

// palette cycles per bar group so one job keeps one colour across lanes.
var palette = [][3]int{
	{66, 133, 244}, {219, 68, 55}, {244, 180, 0}, {15, 157, 88},
	{171, 71, 188}, {0, 172, 193}, {255, 112, 67}, {158, 157, 36},
}

// PDFExporter renders datasets into a landscape table followed by an optional timeline.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }
func (e *PDFExporter) Extension() string   { return "pdf" }

// Render creates the PDF document.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	if data.Chart != nil && len(data.Chart.Lanes) > 0 {
		drawChart(pdf, *data.Chart)
		pdf.Ln(6)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := pageWidth / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, value := range row {
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawChart(pdf *gofpdf.Fpdf, chart Chart) {
	span := chart.Span
	if span <= 0 {
		span = 1
	}
	left, top := pdf.GetX(), pdf.GetY()
	scale := (pageWidth - labelWidth) / float64(span)
	colours := map[string][3]int{}

	pdf.SetFont("Arial", "", 8)
	for i, lane := range chart.Lanes {
		y := top + float64(i)*laneHeight
		pdf.SetXY(left, y)
		pdf.CellFormat(labelWidth, laneHeight, lane.Label, "1", 0, "L", false, 0, "")
		pdf.Rect(left+labelWidth, y, pageWidth-labelWidth, laneHeight, "D")
		for _, bar := range lane.Bars {
			if bar.End <= bar.Start {
				continue
			}
			c, ok := colours[bar.Group]
			if !ok {
				c = palette[len(colours)%len(palette)]
				colours[bar.Group] = c
			}
			x := left + labelWidth + float64(bar.Start)*scale
			w := float64(bar.End-bar.Start) * scale
			pdf.SetFillColor(c[0], c[1], c[2])
			pdf.Rect(x, y+1, w, laneHeight-2, "FD")
			pdf.SetXY(x, y)
			pdf.CellFormat(w, laneHeight, bar.Label, "", 0, "C", false, 0, "")
		}
	}

	axisY := top + float64(len(chart.Lanes))*laneHeight
	pdf.SetXY(left+labelWidth, axisY)
	pdf.CellFormat(10, 5, "0", "", 0, "L", false, 0, "")
	pdf.SetXY(left+pageWidth-10, axisY)
	pdf.CellFormat(10, 5, fmt.Sprintf("%d", span), "", 0, "R", false, 0, "")
	pdf.SetXY(left, axisY+6)
}
