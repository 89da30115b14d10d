package services

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Excel caps sheet names at 31 chars and rejects these characters.
const maxSheetNameLen = 31

var sheetNameReplacer = strings.NewReplacer(
	":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "",
)

// sanitizeSheetName strips filesystem/Excel-unsafe characters and
// truncates to the sheet-name limit. The limit counts characters, so
// truncation runs over runes to keep multi-byte names intact.
func sanitizeSheetName(name string) string {
	clean := strings.TrimSpace(sheetNameReplacer.Replace(name))
	if clean == "" {
		clean = "Sheet"
	}
	if r := []rune(clean); len(r) > maxSheetNameLen {
		clean = string(r[:maxSheetNameLen])
	}
	return clean
}

// sheetNamer hands out sanitized names that stay unique within one export.
type sheetNamer struct {
	used map[string]struct{}
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]struct{})}
}

// unique suffixes " (N)" until the candidate is free, so a batch whose
// literal name already ends in such a suffix cannot collide with a
// deduplicated one. Matching is case-insensitive, the way Excel treats
// sheet names.
func (n *sheetNamer) unique(name string) string {
	clean := sanitizeSheetName(name)
	candidate := clean
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, taken := n.used[key]; !taken {
			n.used[key] = struct{}{}
			return candidate
		}
		suffix := fmt.Sprintf(" (%d)", i)
		base := []rune(clean)
		if len(base)+len(suffix) > maxSheetNameLen {
			base = base[:maxSheetNameLen-len(suffix)]
		}
		candidate = string(base) + suffix
	}
}

// BuildWorkbook renders export sheets into an XLSX workbook. The first
// sheet replaces excelize's default "Sheet1".
func BuildWorkbook(sheets []ExportSheet) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, sheet := range sheets {
		name := sheet.Name
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, err
			}
		}
		for r, row := range sheet.Rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(name, cell, value); err != nil {
					return nil, err
				}
			}
		}
	}
	return f, nil
}
