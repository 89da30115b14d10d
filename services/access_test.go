package services

import (
	"testing"

	"tutorlink_go/models"
)

func TestVisibilityFilter(t *testing.T) {
	guard := NewAccessGuard()

	tests := []struct {
		name         string
		caller       Caller
		teacherParam *uint
		wantStudent  *uint
		wantTeacher  *uint
	}{
		{
			name:   "staff unrestricted",
			caller: staffCaller,
		},
		{
			name:         "staff narrowed to one teacher",
			caller:       staffCaller,
			teacherParam: uintPtr(teacherID),
			wantTeacher:  uintPtr(teacherID),
		},
		{
			name:        "superadmin unrestricted",
			caller:      Caller{UserID: 2, Role: models.RoleSuperAdmin},
			wantTeacher: nil,
		},
		{
			name:        "teacher pinned to own id",
			caller:      teacherCaller,
			wantTeacher: uintPtr(teacherID),
		},
		{
			name:         "teacher param ignored for teacher callers",
			caller:       teacherCaller,
			teacherParam: uintPtr(otherTeacherID),
			wantTeacher:  uintPtr(teacherID),
		},
		{
			name:        "student pinned to own id",
			caller:      studentACaller,
			wantStudent: uintPtr(studentAID),
		},
		{
			name:         "student param ignored for student callers",
			caller:       studentACaller,
			teacherParam: uintPtr(teacherID),
			wantStudent:  uintPtr(studentAID),
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			vis := guard.VisibilityFilter(tc.caller, tc.teacherParam)
			if !uintPtrEqual(vis.StudentID, tc.wantStudent) {
				t.Fatalf("StudentID = %v, want %v", fmtPtr(vis.StudentID), fmtPtr(tc.wantStudent))
			}
			if !uintPtrEqual(vis.TeacherID, tc.wantTeacher) {
				t.Fatalf("TeacherID = %v, want %v", fmtPtr(vis.TeacherID), fmtPtr(tc.wantTeacher))
			}
			wantUnrestricted := tc.wantStudent == nil && tc.wantTeacher == nil
			if vis.Unrestricted() != wantUnrestricted {
				t.Fatalf("Unrestricted() = %v, want %v", vis.Unrestricted(), wantUnrestricted)
			}
		})
	}
}

func TestCanMark(t *testing.T) {
	guard := NewAccessGuard()
	call := &models.ScheduledCall{TeacherID: teacherID, BatchID: 1}
	record := &models.Attendance{TeacherID: teacherID, BatchID: 1}

	tests := []struct {
		name   string
		caller Caller
		want   bool
	}{
		{name: "admin", caller: staffCaller, want: true},
		{name: "superadmin", caller: Caller{UserID: 2, Role: models.RoleSuperAdmin}, want: true},
		{name: "owning teacher", caller: teacherCaller, want: true},
		{name: "other teacher", caller: otherTeacherCaller, want: false},
		{name: "student", caller: studentACaller, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := guard.CanMark(tc.caller, call); got != tc.want {
				t.Fatalf("CanMark = %v, want %v", got, tc.want)
			}
			// Call mutation and stored-row replays share the marking rule.
			if got := guard.CanMutateCall(tc.caller, call); got != tc.want {
				t.Fatalf("CanMutateCall = %v, want %v", got, tc.want)
			}
			if got := guard.CanMarkRecord(tc.caller, record); got != tc.want {
				t.Fatalf("CanMarkRecord = %v, want %v", got, tc.want)
			}
		})
	}
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(p *uint) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
