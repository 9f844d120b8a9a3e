package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/prettymuchbryce/kpicheck/internal/scan"
)

// Sheet names of the spreadsheet report.
const (
	SheetSummary      = "Summary"
	SheetDetail       = "Detail"
	SheetNoncompliant = "Noncompliant"
	SheetFixes        = "Fixes"
)

var (
	detailHeader       = []any{"File name", "Path", "Status", "Has KPI", "Score", "Matched text", "Year", "Quarter", "Pattern", "Error"}
	noncompliantHeader = []any{"File name", "Path"}
	fixesHeader        = []any{"Path", "Attempted", "Succeeded", "State", "Backup", "Text", "Reason"}
)

// RenderExcel renders r as an xlsx workbook. The Fixes sheet exists only when
// a fix ran.
func RenderExcel(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	w := &sheetWriter{f: f, header: bold}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	s := r.Summary
	summaryRows := [][]any{
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Directory", r.Root},
		{"Files", s.TotalFiles},
		{"Compliant", s.Compliant},
		{"Missing KPI", s.NonCompliant},
		{"Unreadable", s.Unreadable},
		{"Compliance rate (%)", s.ComplianceRate()},
		{"Average score", s.AverageText()},
	}
	for _, score := range s.Scores() {
		summaryRows = append(summaryRows, []any{fmt.Sprintf("Score %d", score), s.ScoreDistribution[score]})
	}
	if err := w.table(SheetSummary, []any{"Metric", "Value"}, summaryRows); err != nil {
		return nil, err
	}

	var detail, missing [][]any
	for _, res := range r.Results {
		detail = append(detail, []any{
			res.FileName, res.FilePath, string(res.Status), yesNo(res.HasKPI),
			intCell(res.Score), res.MatchedText, intCell(res.Year), intCell(res.Quarter),
			res.Pattern, res.ErrorText(),
		})
		if res.Status == scan.StatusNonCompliant {
			missing = append(missing, []any{res.FileName, res.FilePath})
		}
	}
	if err := w.newTable(SheetDetail, detailHeader, detail); err != nil {
		return nil, err
	}
	if err := w.newTable(SheetNoncompliant, noncompliantHeader, missing); err != nil {
		return nil, err
	}

	if r.Fixes != nil {
		var rows [][]any
		for _, o := range r.Fixes {
			rows = append(rows, []any{
				o.FilePath, yesNo(o.Attempted), yesNo(o.Succeeded), string(o.State),
				o.BackupPath, o.Text, o.Reason,
			})
		}
		if err := w.newTable(SheetFixes, fixesHeader, rows); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
}

func (w *sheetWriter) newTable(sheet string, header []any, rows [][]any) error {
	if _, err := w.f.NewSheet(sheet); err != nil {
		return err
	}
	return w.table(sheet, header, rows)
}

func (w *sheetWriter) table(sheet string, header []any, rows [][]any) error {
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func intCell(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
