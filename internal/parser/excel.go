package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseExcel reads every sheet using the "markdownification" strategy: the
// first row holds headers and every later row becomes
// "Row N: Header: Value, ...".
func parseExcel(filePath string) ([]Sheet, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file: %s", filePath)
	}

	var sheets []Sheet
	for _, sheetName := range sheetList {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			// Skip this sheet if we can't read it (e.g., password protected)
			continue
		}
		if lines := markdownRows(rows); len(lines) > 0 {
			sheets = append(sheets, Sheet{Name: sheetName, Rows: lines})
		}
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("no content extracted from Excel file: %s", filePath)
	}
	return sheets, nil
}

func markdownRows(rows [][]string) []string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	headers := rows[0]

	var lines []string
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]

		var parts []string
		for colIdx, header := range headers {
			if colIdx >= len(row) {
				break
			}
			value := strings.TrimSpace(row[colIdx])
			if value == "" {
				continue
			}
			name := strings.TrimSpace(header)
			if name == "" {
				name = fmt.Sprintf("Column %d", colIdx+1)
			}
			parts = append(parts, fmt.Sprintf("%s: %s", name, value))
		}

		if len(parts) > 0 {
			lines = append(lines, fmt.Sprintf("Row %d: %s", rowIdx+1, strings.Join(parts, ", ")))
		}
	}
	return lines
}
