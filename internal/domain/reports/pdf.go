package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

var monthlyColumns = []struct {
	title string
	width float64
}{
	{"Employee", 60}, {"Department", 40}, {"Present", 22}, {"Half", 18},
	{"Absent", 20}, {"Late", 18}, {"Hours", 24}, {"Avg h", 22},
}

// RenderMonthlyPDF lays the monthly attendance report out as an A4 landscape table.
func RenderMonthlyPDF(r MonthlyReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Attendance report %s %d", time.Month(r.Month), r.Year))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s, %d working days", r.From, r.To, r.WorkingDays))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range monthlyColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range r.Rows {
		cells := []string{
			row.FullName,
			row.Department,
			fmt.Sprint(row.PresentDays),
			fmt.Sprint(row.HalfDays),
			fmt.Sprint(row.AbsentDays),
			fmt.Sprint(row.LateDays),
			fmt.Sprintf("%.2f", row.TotalHours),
			fmt.Sprintf("%.2f", row.AverageHours),
		}
		for i, col := range monthlyColumns {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
