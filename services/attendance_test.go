package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tutorlink_go/models"
)

func TestMarkRequiresIdempotencyKey(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	_, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if !errors.Is(err, ErrMissingIdempotencyKey) {
		t.Fatalf("err = %v, want ErrMissingIdempotencyKey", err)
	}
	if f.ledger.Count() != 0 {
		t.Fatalf("nothing may be written without a key")
	}
}

func TestMarkUnknownCall(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()

	_, err := ledger.Mark(context.Background(), teacherCaller, 999, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("err = %v, want ErrCallNotFound", err)
	}
}

func TestMarkAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		wantErr error
	}{
		{name: "owning teacher", caller: teacherCaller},
		{name: "admin", caller: staffCaller},
		{name: "other teacher", caller: otherTeacherCaller, wantErr: ErrNotAuthorized},
		{name: "student", caller: studentACaller, wantErr: ErrNotAuthorized},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ledger := f.attendanceLedger()
			seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

			_, err := ledger.Mark(context.Background(), tc.caller, seed.ID, "key-1", []MarkEntry{
				{StudentID: studentAID, Status: models.AttendancePresent},
			})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMarkValidatesEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []MarkEntry
	}{
		{name: "empty list", entries: nil},
		{name: "zero student id", entries: []MarkEntry{{StudentID: 0, Status: models.AttendancePresent}}},
		{name: "invalid status", entries: []MarkEntry{{StudentID: studentAID, Status: "Late"}}},
		{name: "student outside roster", entries: []MarkEntry{{StudentID: outsiderID, Status: models.AttendancePresent}}},
		{
			name: "duplicate student",
			entries: []MarkEntry{
				{StudentID: studentAID, Status: models.AttendancePresent},
				{StudentID: studentAID, Status: models.AttendanceAbsent},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ledger := f.attendanceLedger()
			seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

			_, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", tc.entries)
			if !errors.Is(err, ErrInvalidStudentEntry) {
				t.Fatalf("err = %v, want ErrInvalidStudentEntry", err)
			}
			if f.ledger.Count() != 0 {
				t.Fatalf("invalid entries must not be written")
			}
		})
	}
}

func TestMarkSameKeyReplayReturnsUnchanged(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	firstAt := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	ledger.now = func() time.Time { return firstAt }

	first, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A replay under the same key is the same logical submission: the
	// stored row comes back untouched even when the payload differs.
	ledger.now = func() time.Time { return firstAt.Add(time.Hour) }
	replay, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendanceAbsent},
		{StudentID: studentBID, Status: models.AttendanceAbsent},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replay.UUID != first.UUID {
		t.Fatalf("replay returned a different row: %s vs %s", replay.UUID, first.UUID)
	}
	if len(replay.Entries) != 1 || replay.Entries[0].Status != models.AttendancePresent {
		t.Fatalf("replay mutated entries: %+v", replay.Entries)
	}
	if !replay.Entries[0].MarkedAt.Equal(firstAt) {
		t.Fatalf("MarkedAt changed on replay: %v", replay.Entries[0].MarkedAt)
	}
	if f.ledger.Count() != 1 {
		t.Fatalf("row count = %d, want 1", f.ledger.Count())
	}
}

func TestMarkReplayRequiresAuthorization(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	first, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The duplicate-key fast path must not hand the stored row to a
	// caller who could not have marked it in the first place.
	for _, caller := range []Caller{otherTeacherCaller, studentACaller} {
		if _, err := ledger.Mark(context.Background(), caller, seed.ID, "key-1", []MarkEntry{
			{StudentID: studentAID, Status: models.AttendancePresent},
		}); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("caller %d replay: err = %v, want ErrNotAuthorized", caller.UserID, err)
		}
	}

	replay, err := ledger.Mark(context.Background(), staffCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if err != nil {
		t.Fatalf("staff replay: %v", err)
	}
	if replay.UUID != first.UUID {
		t.Fatalf("staff replay returned a different row")
	}
	if f.ledger.Count() != 1 {
		t.Fatalf("row count = %d, want 1", f.ledger.Count())
	}
}

func TestMarkNewKeyOverwritesCallRow(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	if _, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := ledger.Mark(context.Background(), staffCaller, seed.ID, "key-2", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendanceAbsent},
		{StudentID: studentBID, Status: models.AttendancePresent},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ledger.Count() != 1 {
		t.Fatalf("row count = %d, want exactly one row per call", f.ledger.Count())
	}
	if second.IdempotencyKey != "key-2" {
		t.Fatalf("key = %q, want key-2", second.IdempotencyKey)
	}
	if len(second.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(second.Entries))
	}
	if second.CreatedBy != staffID {
		t.Fatalf("CreatedBy = %d, want %d", second.CreatedBy, staffID)
	}
}

func TestMarkConcurrentDistinctKeys(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Mark(context.Background(), teacherCaller, seed.ID, fmt.Sprintf("key-%d", i), []MarkEntry{
				{StudentID: studentAID, Status: models.AttendancePresent},
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	if f.ledger.Count() != 1 {
		t.Fatalf("row count = %d, want 1 after concurrent marks", f.ledger.Count())
	}
}

func TestMarkDenormalizesCallFields(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	att, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.CallID != seed.ID || att.BatchID != 1 || att.CourseID != 1 || att.TeacherID != teacherID {
		t.Fatalf("denormalized fields wrong: %+v", att)
	}
	if !att.Date.Equal(seed.Date) {
		t.Fatalf("date = %v, want %v", att.Date, seed.Date)
	}
	if att.UUID == "" {
		t.Fatalf("expected a generated uuid")
	}
	if att.Entries[0].MarkedBy != teacherID {
		t.Fatalf("MarkedBy = %d, want %d", att.Entries[0].MarkedBy, teacherID)
	}
}

func TestRecordVisibility(t *testing.T) {
	f := newFixture()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	if _, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		caller  Caller
		wantErr error
	}{
		{name: "owning teacher", caller: teacherCaller},
		{name: "admin", caller: staffCaller},
		{name: "student in the record", caller: studentACaller},
		{name: "enrolled student not in the record", caller: studentBCaller, wantErr: ErrNotAuthorized},
		{name: "other teacher", caller: otherTeacherCaller, wantErr: ErrNotAuthorized},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Record(context.Background(), tc.caller, seed.ID)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	if _, err := ledger.Record(context.Background(), staffCaller, 999); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("unmarked call: err = %v, want ErrCallNotFound", err)
	}
}
