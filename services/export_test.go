package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"tutorlink_go/models"
)

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Math Morning Batch", want: "Math Morning Batch"},
		{name: "forbidden characters stripped", input: "Math: A/B?", want: "Math AB"},
		{name: "brackets and wildcards", input: "[Batch]*2", want: "Batch2"},
		{name: "backslash", input: `a\b`, want: "ab"},
		{name: "truncated to limit", input: strings.Repeat("x", 40), want: strings.Repeat("x", 31)},
		{name: "only forbidden characters", input: ":/\\", want: "Sheet"},
		{name: "whitespace trimmed", input: "  Batch  ", want: "Batch"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeSheetName(tc.input); got != tc.want {
				t.Fatalf("sanitizeSheetName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeSheetNameTruncatesByRunes(t *testing.T) {
	got := sanitizeSheetName(strings.Repeat("ん", 40))
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a multi-byte character: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxSheetNameLen {
		t.Fatalf("rune count = %d, want %d", n, maxSheetNameLen)
	}
}

func TestSheetNamerUnique(t *testing.T) {
	names := newSheetNamer()

	if got := names.unique("Batch A"); got != "Batch A" {
		t.Fatalf("first = %q", got)
	}
	// Dedup is case-insensitive; the collision keeps its own casing.
	if got := names.unique("batch a"); got != "batch a (2)" {
		t.Fatalf("second = %q", got)
	}
	if got := names.unique("Batch A"); got != "Batch A (3)" {
		t.Fatalf("third = %q", got)
	}
	if got := names.unique("Batch B"); got != "Batch B" {
		t.Fatalf("distinct name = %q", got)
	}
}

func TestSheetNamerLiteralSuffixCollision(t *testing.T) {
	names := newSheetNamer()

	if got := names.unique("X"); got != "X" {
		t.Fatalf("first = %q", got)
	}
	if got := names.unique("X"); got != "X (2)" {
		t.Fatalf("dedup = %q", got)
	}
	// A batch literally named like a dedup result must still come out
	// unique.
	if got := names.unique("X (2)"); got != "X (2) (2)" {
		t.Fatalf("literal suffix collision = %q", got)
	}
	if got := names.unique("X"); got != "X (3)" {
		t.Fatalf("next dedup = %q", got)
	}
}

func TestSheetNamerUniqueRespectsLengthLimit(t *testing.T) {
	names := newSheetNamer()
	long := strings.Repeat("y", 31)

	if got := names.unique(long); got != long {
		t.Fatalf("first = %q", got)
	}
	second := names.unique(long)
	if len(second) > maxSheetNameLen {
		t.Fatalf("suffixed name exceeds limit: %q (%d)", second, len(second))
	}
	if !strings.HasSuffix(second, " (2)") {
		t.Fatalf("second = %q, want trailing \" (2)\"", second)
	}
}

func TestExportSheetsPerBatchForUnscopedStaff(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()
	seedRecord(t, f, 1, 1, 1, teacherID, day("2026-03-02"),
		entry(studentAID, models.AttendancePresent))
	seedRecord(t, f, 2, 2, 2, otherTeacherID, day("2026-03-03"),
		entry(studentBID, models.AttendanceAbsent))

	sheets, err := engine.ExportSheets(context.Background(), staffCaller, ReportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("sheets = %d, want one per batch", len(sheets))
	}
	if sheets[0].Name != "Math Morning Batch" || sheets[1].Name != "Physics Evening Batch" {
		t.Fatalf("sheet names = %q, %q", sheets[0].Name, sheets[1].Name)
	}
	for _, sheet := range sheets {
		if len(sheet.Rows) != 2 {
			t.Fatalf("sheet %q rows = %d, want header plus one entry", sheet.Name, len(sheet.Rows))
		}
	}
}

func TestExportSheetsSingleSheetWhenScoped(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()
	seedRecord(t, f, 1, 1, 1, teacherID, day("2026-03-02"),
		entry(studentAID, models.AttendancePresent))
	seedRecord(t, f, 2, 2, 2, otherTeacherID, day("2026-03-03"),
		entry(studentBID, models.AttendanceAbsent))

	tests := []struct {
		name     string
		caller   Caller
		filter   ReportFilter
		wantRows int
	}{
		{name: "staff narrowed to a teacher", caller: staffCaller, filter: ReportFilter{TeacherID: uintPtr(teacherID)}, wantRows: 2},
		{name: "teacher caller", caller: teacherCaller, wantRows: 2},
		{name: "student caller", caller: studentBCaller, wantRows: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sheets, err := engine.ExportSheets(context.Background(), tc.caller, tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sheets) != 1 || sheets[0].Name != "Attendance" {
				t.Fatalf("sheets = %+v, want a single Attendance sheet", sheets)
			}
			if len(sheets[0].Rows) != tc.wantRows {
				t.Fatalf("rows = %d, want %d", len(sheets[0].Rows), tc.wantRows)
			}
		})
	}
}

func TestExportSheetsEmptyLedger(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()

	sheets, err := engine.ExportSheets(context.Background(), staffCaller, ReportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sheets) != 1 || sheets[0].Name != "Attendance" {
		t.Fatalf("sheets = %+v, want a single header-only Attendance sheet", sheets)
	}
	if len(sheets[0].Rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(sheets[0].Rows))
	}
}

func TestExportRowLayout(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()
	seedRecord(t, f, 1, 1, 1, teacherID, day("2026-03-02"),
		entry(studentAID, models.AttendancePresent))

	sheets, err := engine.ExportSheets(context.Background(), teacherCaller, ReportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	header := sheets[0].Rows[0]
	if len(header) != len(ExportColumns) {
		t.Fatalf("header = %v", header)
	}
	for i, col := range ExportColumns {
		if header[i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, header[i], col)
		}
	}

	row := sheets[0].Rows[1]
	want := []string{"2026-03-02", "Algebra Foundations", "Math Morning Batch", "Priya Sharma", "Aarav Patel", "Present"}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestBuildWorkbook(t *testing.T) {
	sheets := []ExportSheet{
		{Name: "Math Morning Batch", Rows: [][]string{ExportColumns, {"2026-03-02", "Algebra Foundations", "Math Morning Batch", "Priya Sharma", "Aarav Patel", "Present"}}},
		{Name: "Physics Evening Batch", Rows: [][]string{ExportColumns}},
	}

	wb, err := BuildWorkbook(sheets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer wb.Close()

	list := wb.GetSheetList()
	if len(list) != 2 || list[0] != "Math Morning Batch" || list[1] != "Physics Evening Batch" {
		t.Fatalf("sheet list = %v", list)
	}

	got, err := wb.GetCellValue("Math Morning Batch", "E2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Aarav Patel" {
		t.Fatalf("E2 = %q, want student name", got)
	}
	head, err := wb.GetCellValue("Physics Evening Batch", "A1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head != "Date" {
		t.Fatalf("A1 = %q, want Date", head)
	}
}
