package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

var columns = []string{"time", "field", "value", "patientId", "sensor_serial_number"}

// WriteCSV writes the records to a CSV file with a header row.
func WriteCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("export: writing CSV header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Time.UTC().Format(time.RFC3339),
			r.Field,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.PatientID,
			r.SensorSerial,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("export: writing CSV row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export: encoding JSON: %w", err)
	}
	return nil
}

// WriteXLSX writes the records to a single-sheet Excel workbook.
func WriteXLSX(path string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, name := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("export: header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("export: writing header: %w", err)
		}
	}

	for rowIdx, r := range records {
		values := []any{
			r.Time.UTC().Format(time.RFC3339),
			r.Field,
			r.Value,
			r.PatientID,
			r.SensorSerial,
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("export: cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("export: writing cell: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: saving %s: %w", path, err)
	}
	return nil
}
