package services

import (
	"context"
	"errors"
	"testing"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

func TestCreateValidatesClockTime(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{name: "valid slot", start: "09:00", end: "10:30"},
		{name: "midnight", start: "00:00", end: "23:59"},
		{name: "missing leading zero", start: "9:00", end: "10:00", wantErr: true},
		{name: "hour out of range", start: "25:00", end: "26:00", wantErr: true},
		{name: "not a time", start: "morning", end: "10:00", wantErr: true},
		{name: "empty start", start: "", end: "10:00", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			svc := f.callStore()
			_, err := svc.Create(context.Background(), teacherCaller, &models.ScheduledCall{
				TeacherID: teacherID,
				CourseID:  1,
				BatchID:   1,
				Date:      day("2026-03-02"),
				StartTime: tc.start,
				EndTime:   tc.end,
			})
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidCallSlot) {
					t.Fatalf("err = %v, want ErrInvalidCallSlot", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateForcesScheduledStatus(t *testing.T) {
	f := newFixture()
	svc := f.callStore()

	call, err := svc.Create(context.Background(), staffCaller, &models.ScheduledCall{
		TeacherID: teacherID,
		CourseID:  1,
		BatchID:   1,
		Date:      day("2026-03-02"),
		StartTime: "09:00",
		EndTime:   "10:00",
		Status:    models.CallCompleted,
		IsDeleted: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Status != models.CallScheduled {
		t.Fatalf("status = %q, want %q", call.Status, models.CallScheduled)
	}
	if call.IsDeleted {
		t.Fatalf("new call must not be deleted")
	}
	if call.ID == 0 {
		t.Fatalf("expected an assigned id")
	}
}

func TestCreateRejectsUnknownBatch(t *testing.T) {
	f := newFixture()
	svc := f.callStore()

	_, err := svc.Create(context.Background(), staffCaller, &models.ScheduledCall{
		TeacherID: teacherID,
		CourseID:  1,
		BatchID:   99,
		Date:      day("2026-03-02"),
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	if !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("err = %v, want ErrBatchNotFound", err)
	}
}

func TestCreateAuthorization(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	template := models.ScheduledCall{
		TeacherID: teacherID,
		CourseID:  1,
		BatchID:   1,
		Date:      day("2026-03-02"),
		StartTime: "09:00",
		EndTime:   "10:00",
	}

	for _, caller := range []Caller{otherTeacherCaller, studentACaller} {
		call := template
		if _, err := svc.Create(context.Background(), caller, &call); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("caller %d: err = %v, want ErrNotAuthorized", caller.UserID, err)
		}
	}
}

func TestRescheduleSnapshotsPreviousSlot(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	moved, err := svc.Reschedule(context.Background(), teacherCaller, seed.ID, day("2026-03-04"), "11:00", "12:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.Status != models.CallRescheduled {
		t.Fatalf("status = %q, want %q", moved.Status, models.CallRescheduled)
	}
	if !moved.Date.Equal(day("2026-03-04")) || moved.StartTime != "11:00" || moved.EndTime != "12:00" {
		t.Fatalf("slot not applied: %v %s-%s", moved.Date, moved.StartTime, moved.EndTime)
	}
	if moved.PreviousDate == nil || !moved.PreviousDate.Equal(day("2026-03-02")) {
		t.Fatalf("previous date not snapshotted: %v", moved.PreviousDate)
	}
	if moved.PreviousStartTime == nil || *moved.PreviousStartTime != "09:00" {
		t.Fatalf("previous start not snapshotted: %v", moved.PreviousStartTime)
	}
	if moved.PreviousEndTime == nil || *moved.PreviousEndTime != "10:00" {
		t.Fatalf("previous end not snapshotted: %v", moved.PreviousEndTime)
	}

	// A second reschedule overwrites the snapshot; only one level of
	// history is kept.
	again, err := svc.Reschedule(context.Background(), teacherCaller, seed.ID, day("2026-03-06"), "08:00", "09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.PreviousDate == nil || !again.PreviousDate.Equal(day("2026-03-04")) {
		t.Fatalf("snapshot not overwritten: %v", again.PreviousDate)
	}
	if again.PreviousStartTime == nil || *again.PreviousStartTime != "11:00" {
		t.Fatalf("snapshot start not overwritten: %v", again.PreviousStartTime)
	}
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	type op func(svc *CallStore, id uint) error
	reschedule := func(svc *CallStore, id uint) error {
		_, err := svc.Reschedule(context.Background(), staffCaller, id, day("2026-03-09"), "09:00", "10:00")
		return err
	}
	cancel := func(svc *CallStore, id uint) error {
		_, err := svc.Cancel(context.Background(), staffCaller, id)
		return err
	}
	complete := func(svc *CallStore, id uint) error {
		_, err := svc.Complete(context.Background(), staffCaller, id)
		return err
	}

	tests := []struct {
		name     string
		terminal func(svc *CallStore, id uint) error
		followUp op
	}{
		{name: "reschedule after complete", terminal: complete, followUp: reschedule},
		{name: "cancel after complete", terminal: complete, followUp: cancel},
		{name: "complete after complete", terminal: complete, followUp: complete},
		{name: "reschedule after cancel", terminal: cancel, followUp: reschedule},
		{name: "complete after cancel", terminal: cancel, followUp: complete},
		{name: "cancel after cancel", terminal: cancel, followUp: cancel},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			svc := f.callStore()
			seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")
			if err := tc.terminal(svc, seed.ID); err != nil {
				t.Fatalf("terminal transition failed: %v", err)
			}
			if err := tc.followUp(svc, seed.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestRescheduleAfterRescheduleStaysOpen(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	if _, err := svc.Reschedule(context.Background(), teacherCaller, seed.ID, day("2026-03-04"), "09:00", "10:00"); err != nil {
		t.Fatalf("first reschedule: %v", err)
	}
	if _, err := svc.Complete(context.Background(), teacherCaller, seed.ID); err != nil {
		t.Fatalf("complete after reschedule: %v", err)
	}
}

func TestMutationAuthorization(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	if _, err := svc.Cancel(context.Background(), otherTeacherCaller, seed.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("other teacher cancel: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Complete(context.Background(), studentACaller, seed.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("student complete: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Cancel(context.Background(), teacherCaller, seed.ID); err != nil {
		t.Fatalf("owning teacher cancel: %v", err)
	}
}

func TestSoftDeleteBlockedByAttendance(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	ledger := f.attendanceLedger()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	_, err := ledger.Mark(context.Background(), teacherCaller, seed.ID, "key-1", []MarkEntry{
		{StudentID: studentAID, Status: models.AttendancePresent},
	})
	if err != nil {
		t.Fatalf("marking attendance: %v", err)
	}

	if err := svc.SoftDelete(context.Background(), teacherCaller, seed.ID); !errors.Is(err, ErrHasDependentAttendance) {
		t.Fatalf("err = %v, want ErrHasDependentAttendance", err)
	}

	// The failed delete must not have touched the call.
	call, err := svc.Get(context.Background(), teacherCaller, seed.ID)
	if err != nil {
		t.Fatalf("call should still be readable: %v", err)
	}
	if call.IsDeleted {
		t.Fatalf("call flagged deleted despite dependent attendance")
	}
}

func TestSoftDeleteHidesCall(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	if err := svc.SoftDelete(context.Background(), teacherCaller, seed.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), teacherCaller, seed.ID); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("err = %v, want ErrCallNotFound", err)
	}
	if _, err := svc.Cancel(context.Background(), teacherCaller, seed.ID); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("transition on deleted call: err = %v, want ErrCallNotFound", err)
	}
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")
	f.newCall(t, otherTeacherID, 2, 2, "2026-03-02", "17:00", "18:00")

	tests := []struct {
		name         string
		caller       Caller
		teacherParam *uint
		wantCount    int
	}{
		{name: "staff sees everything", caller: staffCaller, wantCount: 2},
		{name: "staff narrowed to one teacher", caller: staffCaller, teacherParam: uintPtr(teacherID), wantCount: 1},
		{name: "teacher sees own calls", caller: teacherCaller, wantCount: 1},
		{name: "student sees enrolled batches only", caller: studentACaller, wantCount: 1},
		{name: "student enrolled in both batches", caller: studentBCaller, wantCount: 2},
		{name: "unenrolled student sees nothing", caller: outsiderCaller, wantCount: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			calls, err := svc.List(context.Background(), tc.caller, store.CallFilter{TeacherID: tc.teacherParam})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(calls) != tc.wantCount {
				t.Fatalf("len = %d, want %d", len(calls), tc.wantCount)
			}
		})
	}
}

func TestGetVisibility(t *testing.T) {
	f := newFixture()
	svc := f.callStore()
	seed := f.newCall(t, teacherID, 1, 1, "2026-03-02", "09:00", "10:00")

	if _, err := svc.Get(context.Background(), studentACaller, seed.ID); err != nil {
		t.Fatalf("enrolled student should see the call: %v", err)
	}
	if _, err := svc.Get(context.Background(), outsiderCaller, seed.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unenrolled student: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Get(context.Background(), otherTeacherCaller, seed.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("other teacher: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Get(context.Background(), staffCaller, 999); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("unknown call: err = %v, want ErrCallNotFound", err)
	}
}
