package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tutorlink_go/models"
)

// seedRecord writes a ledger row directly, bypassing the mark path, so the
// report tests control dates and entries precisely.
func seedRecord(t *testing.T, f *fixture, callID, batchID, courseID, teacher uint, date time.Time, entries ...models.StudentEntry) {
	t.Helper()
	_, err := f.ledger.UpsertByCall(context.Background(), &models.Attendance{
		UUID:           fmt.Sprintf("uuid-%d", callID),
		CallID:         callID,
		BatchID:        batchID,
		CourseID:       courseID,
		TeacherID:      teacher,
		Date:           date,
		Entries:        models.StudentEntryList(entries),
		CreatedBy:      teacher,
		IdempotencyKey: fmt.Sprintf("seed-%d", callID),
	})
	if err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}
}

func entry(studentID uint, status models.AttendanceStatus) models.StudentEntry {
	return models.StudentEntry{
		StudentID: studentID,
		Status:    status,
		MarkedAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		MarkedBy:  teacherID,
	}
}

func TestQueryDateRangeInclusive(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()

	// The row's stored date carries a midday timestamp; a filter naming
	// the same civil day on both ends must still include it.
	midday := time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC)
	seedRecord(t, f, 1, 1, 1, teacherID, midday, entry(studentAID, models.AttendancePresent))
	seedRecord(t, f, 2, 1, 1, teacherID, day("2026-03-06"), entry(studentAID, models.AttendancePresent))

	from := day("2026-03-05")
	to := day("2026-03-05")
	res, err := engine.Query(context.Background(), staffCaller, ReportFilter{FromDate: &from, ToDate: &to})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1 (single-day range covers the whole day)", len(res.Records))
	}
	if res.Records[0].CallID != 1 {
		t.Fatalf("wrong record: call %d", res.Records[0].CallID)
	}
}

func TestQueryShapeByRole(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()
	seedRecord(t, f, 1, 1, 1, teacherID, day("2026-03-02"),
		entry(studentAID, models.AttendancePresent),
		entry(studentBID, models.AttendanceAbsent))
	seedRecord(t, f, 2, 2, 2, otherTeacherID, day("2026-03-03"),
		entry(studentBID, models.AttendancePresent))

	t.Run("staff unscoped is flat", func(t *testing.T) {
		res, err := engine.Query(context.Background(), staffCaller, ReportFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Grouped {
			t.Fatalf("unscoped staff query must not group")
		}
		if len(res.Records) != 2 {
			t.Fatalf("records = %d, want 2", len(res.Records))
		}
		if res.Records[0].BatchName != "Math Morning Batch" || res.Records[0].TeacherName != "Priya Sharma" {
			t.Fatalf("reference names not joined: %+v", res.Records[0])
		}
	})

	t.Run("staff with teacher filter groups by batch", func(t *testing.T) {
		res, err := engine.Query(context.Background(), staffCaller, ReportFilter{TeacherID: uintPtr(teacherID)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Grouped {
			t.Fatalf("teacher-scoped staff query must group")
		}
		if len(res.Groups) != 1 || res.Groups[0].BatchID != 1 {
			t.Fatalf("groups = %+v", res.Groups)
		}
		if len(res.Groups[0].Records) != 1 {
			t.Fatalf("group records = %d, want 1", len(res.Groups[0].Records))
		}
	})

	t.Run("teacher sees own rows flat", func(t *testing.T) {
		res, err := engine.Query(context.Background(), teacherCaller, ReportFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Grouped {
			t.Fatalf("teacher query must not group")
		}
		if len(res.Records) != 1 || res.Records[0].TeacherID != teacherID {
			t.Fatalf("records = %+v", res.Records)
		}
	})

	t.Run("teacher filter cannot widen a teacher caller", func(t *testing.T) {
		res, err := engine.Query(context.Background(), teacherCaller, ReportFilter{TeacherID: uintPtr(otherTeacherID)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Records) != 1 || res.Records[0].TeacherID != teacherID {
			t.Fatalf("visibility not pinned to caller: %+v", res.Records)
		}
	})

	t.Run("student view trimmed to own entries", func(t *testing.T) {
		res, err := engine.Query(context.Background(), studentBCaller, ReportFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Records) != 2 {
			t.Fatalf("records = %d, want 2", len(res.Records))
		}
		for _, rec := range res.Records {
			if len(rec.Students) != 1 || rec.Students[0].StudentID != studentBID {
				t.Fatalf("record leaks other students: %+v", rec.Students)
			}
		}
	})

	t.Run("student without entries sees nothing", func(t *testing.T) {
		res, err := engine.Query(context.Background(), outsiderCaller, ReportFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Records) != 0 {
			t.Fatalf("records = %d, want 0", len(res.Records))
		}
	})
}

func TestPivotDistinguishesMissingFromAbsent(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()

	// Student B is explicitly Absent on day one and has no entry at all on
	// day two; the second cell must stay missing, not default to Absent.
	seedRecord(t, f, 1, 1, 1, teacherID, day("2026-03-02"),
		entry(studentAID, models.AttendancePresent),
		entry(studentBID, models.AttendanceAbsent))
	seedRecord(t, f, 2, 1, 1, teacherID, day("2026-03-04"),
		entry(studentAID, models.AttendancePresent))

	pivot, err := engine.Pivot(context.Background(), staffCaller, ReportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pivot.Dates) != 2 || pivot.Dates[0] != "2026-03-02" || pivot.Dates[1] != "2026-03-04" {
		t.Fatalf("dates = %v", pivot.Dates)
	}

	byID := make(map[uint]PivotRow, len(pivot.Students))
	for _, row := range pivot.Students {
		byID[row.StudentID] = row
	}

	rowB, ok := byID[studentBID]
	if !ok {
		t.Fatalf("student %d missing from pivot", studentBID)
	}
	if rowB.Statuses["2026-03-02"] != models.AttendanceAbsent {
		t.Fatalf("day one = %q, want Absent", rowB.Statuses["2026-03-02"])
	}
	if _, present := rowB.Statuses["2026-03-04"]; present {
		t.Fatalf("day two must have no cell for student %d", studentBID)
	}

	rowA := byID[studentAID]
	if len(rowA.Statuses) != 2 {
		t.Fatalf("student %d statuses = %v", studentAID, rowA.Statuses)
	}
}

func TestPivotScopedToStudentCaller(t *testing.T) {
	f := newFixture()
	engine := f.reportEngine()
	seedRecord(t, f, 1, 1, 1, teacherID, day("2026-03-02"),
		entry(studentAID, models.AttendancePresent),
		entry(studentBID, models.AttendanceAbsent))

	pivot, err := engine.Pivot(context.Background(), studentACaller, ReportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pivot.Students) != 1 || pivot.Students[0].StudentID != studentAID {
		t.Fatalf("pivot leaks other students: %+v", pivot.Students)
	}
}

func TestGroupByBatchOrdering(t *testing.T) {
	views := []AttendanceView{
		{BatchID: 2, BatchName: "Physics Evening Batch", CallID: 5},
		{BatchID: 1, BatchName: "Math Morning Batch", CallID: 3},
		{BatchID: 2, BatchName: "Physics Evening Batch", CallID: 6},
	}

	groups := groupByBatch(views)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].BatchName != "Math Morning Batch" || groups[1].BatchName != "Physics Evening Batch" {
		t.Fatalf("groups not ordered by name: %s, %s", groups[0].BatchName, groups[1].BatchName)
	}
	if len(groups[1].Records) != 2 {
		t.Fatalf("batch 2 records = %d, want 2", len(groups[1].Records))
	}
}
