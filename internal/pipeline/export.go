package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"pendencias/internal"
)

// ExportHeaders are the column names the tracking team's spreadsheets expect.
var ExportHeaders = []string{"Aluno", "Equipe", "Supervisor", "Tutor", "Módulo", "Atividade", "Status"}

func recordCells(r internal.PendingRecord) []string {
	return []string{r.Student, r.Team, r.Supervisor, r.Tutor, r.Module, r.Activity, r.Status.Code()}
}

// WriteCSV writes the records as UTF-8 delimited text prefixed with a BOM so
// spreadsheet tools keep accented characters.
func WriteCSV(w io.Writer, records []internal.PendingRecord, delimiter rune) error {
	if delimiter == 0 {
		delimiter = ','
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	cw.Comma = delimiter
	if err := cw.Write(ExportHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordCells(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadCSV parses a file produced by WriteCSV.
func ReadCSV(r io.Reader, delimiter rune) ([]internal.PendingRecord, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(blob, utf8BOM)))
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = len(ExportHeaders)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	if strings.Join(header, "|") != strings.Join(ExportHeaders, "|") {
		return nil, fmt.Errorf("unexpected export header: %v", header)
	}

	out := []internal.PendingRecord{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		status, ok := internal.ParseStatus(row[6])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown status %q", line, row[6])
		}
		out = append(out, internal.PendingRecord{
			Student:    row[0],
			Team:       row[1],
			Supervisor: row[2],
			Tutor:      row[3],
			Module:     row[4],
			Activity:   row[5],
			Status:     status,
		})
	}
	return out, nil
}

func ExportRecordsToCSV(records []internal.PendingRecord, outputPath string, delimiter rune) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, records, delimiter); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ExportRecordsToXLSX(records []internal.PendingRecord, outputPath string) error {
	f, err := recordsWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func WriteXLSX(w io.Writer, records []internal.PendingRecord) error {
	f, err := recordsWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func recordsWorkbook(records []internal.PendingRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, ExportHeaders)
	for _, rec := range records {
		rows = append(rows, recordCells(rec))
	}
	if err := writeRows(f, sheet, 1, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// writeRows writes rows as text cells starting at the 1-based firstRow.
func writeRows(f *excelize.File, sheet string, firstRow int, rows [][]string) error {
	for r, values := range rows {
		for c, value := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, firstRow+r)
			if err != nil {
				return fmt.Errorf("row %d: %w", firstRow+r, err)
			}
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

// ExportRecords picks the writer from the output extension.
func ExportRecords(records []internal.PendingRecord, outputPath string, delimiter rune) error {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".xlsx":
		return ExportRecordsToXLSX(records, outputPath)
	case ".csv", ".txt":
		return ExportRecordsToCSV(records, outputPath, delimiter)
	default:
		return fmt.Errorf("unsupported output extension: %s", filepath.Ext(outputPath))
	}
}
