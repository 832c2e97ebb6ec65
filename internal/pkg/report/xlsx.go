// Package report renders computed reports as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/xuri/excelize/v2"
)

const (
	// ContentTypeXLSX is the MIME type of the generated workbooks
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	attendanceSheet = "Attendance"
	summarySheet    = "Summary"
	dailySheet      = "Daily"
	receiptsSheet   = "Receipts"
)

// AttendanceFilename is the download name of a monthly attendance report
func AttendanceFilename(r *dto.MonthlyAttendanceReport) string {
	return fmt.Sprintf("attendance_%d_%04d_%02d.xlsx", r.BatchID, r.Year, r.Month)
}

// CollectionFilename is the download name of a fee collection report
func CollectionFilename(r *dto.CollectionReport) string {
	return fmt.Sprintf("fee_collection_%04d_%02d.xlsx", r.Year, r.Month)
}

// WriteMonthlyAttendance writes one row per student with days and percentage.
func WriteMonthlyAttendance(w io.Writer, r *dto.MonthlyAttendanceReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attendanceSheet); err != nil {
		return err
	}

	title := fmt.Sprintf("%s - %s %d", r.BatchName, time.Month(r.Month), r.Year)
	if err := f.SetCellValue(attendanceSheet, "A1", title); err != nil {
		return err
	}
	header := []interface{}{"Student ID", "Name", "Total Days", "Present Days", "Percentage"}
	if err := writeHeader(f, attendanceSheet, 3, header); err != nil {
		return err
	}

	for i, row := range r.Rows {
		values := []interface{}{row.Student.Code, row.Student.FullName(), row.TotalDays, row.PresentDays, row.Percentage}
		if err := setRow(f, attendanceSheet, i+4, values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(attendanceSheet, "A", "B", 24); err != nil {
		return err
	}

	return f.Write(w)
}

// WriteCollection writes the summary, per-day totals and every receipt of the month.
func WriteCollection(w io.Writer, r *dto.CollectionReport, currency string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}

	title := fmt.Sprintf("Fee collection - %s %d", time.Month(r.Month), r.Year)
	if err := f.SetCellValue(summarySheet, "A1", title); err != nil {
		return err
	}
	if err := setRow(f, summarySheet, 2, []interface{}{"Total (" + currency + ")", r.Total, "Receipts", r.Count}); err != nil {
		return err
	}
	if err := writeHeader(f, summarySheet, 4, []interface{}{"Payment Mode", "Total", "Count"}); err != nil {
		return err
	}
	for i, m := range r.ByMode {
		if err := setRow(f, summarySheet, i+5, []interface{}{string(m.Mode), m.Total, m.Count}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(dailySheet); err != nil {
		return err
	}
	if err := writeHeader(f, dailySheet, 1, []interface{}{"Date", "Total"}); err != nil {
		return err
	}
	for i, d := range r.Daily {
		if err := setRow(f, dailySheet, i+2, []interface{}{d.Date.Format("2006-01-02"), d.Total}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(receiptsSheet); err != nil {
		return err
	}
	header := []interface{}{"Receipt", "Student", "Date", "Mode", "Amount", "Discount", "Fine", "Net"}
	if err := writeHeader(f, receiptsSheet, 1, header); err != nil {
		return err
	}
	for i, t := range r.Transactions {
		values := []interface{}{
			t.ReceiptNumber, t.StudentID, t.PaymentDate.Format("2006-01-02"), string(t.PaymentMode),
			t.Amount, t.Discount, t.Fine, t.NetAmount(),
		}
		if err := setRow(f, receiptsSheet, i+2, values); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, row int, values []interface{}) error {
	if err := setRow(f, sheet, row, values); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
