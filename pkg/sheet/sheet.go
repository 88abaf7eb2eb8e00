// Package sheet encodes and decodes single-sheet xlsx workbooks made of a
// header row followed by string rows.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of an Office Open XML workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultSheet is the name of the only sheet written by Encode.
const DefaultSheet = "Sheet1"

// MaxCellChars is the longest text, in runes, a cell stores without
// truncation.
const MaxCellChars = excelize.TotalCellChars

var (
	// ErrEmpty is returned by Decode when the workbook has no sheets.
	ErrEmpty = errors.New("workbook has no sheets")

	ErrCellTooLong = fmt.Errorf("cell text exceeds %d characters", MaxCellChars)
	ErrCellInvalid = errors.New("cell text contains control or non-XML characters")
)

// CheckCell reports whether s would be stored verbatim. Longer text is cut by
// the writer and control characters are replaced, so both are rejected.
func CheckCell(s string) error {
	if !utf8.ValidString(s) {
		return ErrCellInvalid
	}
	if utf8.RuneCountInString(s) > MaxCellChars {
		return ErrCellTooLong
	}
	for _, r := range s {
		if unicode.IsControl(r) || !isXMLChar(r) {
			return ErrCellInvalid
		}
	}
	return nil
}

// isXMLChar follows the Char production of XML 1.0.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// Table is the decoded content of a sheet.
type Table struct {
	Header []string
	Rows   [][]string
}

// Encode writes header and rows to the first sheet of a new workbook and
// returns the xlsx bytes.
func Encode(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet != DefaultSheet {
		if err := f.SetSheetName(sheet, DefaultSheet); err != nil {
			return nil, fmt.Errorf("failed to rename sheet: %w", err)
		}
		sheet = DefaultSheet
	}

	if err := writeRow(f, sheet, 1, t.Header); err != nil {
		return nil, err
	}
	if len(t.Header) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("failed to create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve header range: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}
	for i, row := range t.Rows {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to resolve row %d: %w", rowNum, err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

// Decode reads the first sheet of an xlsx workbook. The first non-empty row is
// the header; rows are padded to the header width and fully blank rows are
// dropped.
func Decode(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	t := &Table{}
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		if t.Header == nil {
			t.Header = row
			continue
		}
		width := max(len(t.Header), len(row))
		padded := make([]string, width)
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
