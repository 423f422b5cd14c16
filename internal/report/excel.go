package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// SheetWriter writes tabular data into a workbook.
type SheetWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []any) error
	Save(w io.Writer) error
	Close() error
}

// ExcelWriter implements SheetWriter on excelize.
type ExcelWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

// NewExcelWriter creates an empty workbook.
func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{file: excelize.NewFile(), bold: -1}
}

// AddSheet makes name the active sheet. The first call renames the default sheet.
func (w *ExcelWriter) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	return nil
}

// WriteHeader writes a bold header row.
func (w *ExcelWriter) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.WriteRow(row); err != nil {
		return err
	}

	if w.bold < 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil
		}
		w.bold = style
	}
	first, _ := excelize.CoordinatesToCellName(1, w.row-1)
	last, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
	_ = w.file.SetCellStyle(w.sheet, first, last, w.bold)
	return nil
}

// WriteRow writes one row into the active sheet.
func (w *ExcelWriter) WriteRow(row []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}

	start, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, start, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

// Save writes the workbook.
func (w *ExcelWriter) Save(out io.Writer) error {
	return w.file.Write(out)
}

// Close releases the workbook.
func (w *ExcelWriter) Close() error {
	return w.file.Close()
}
