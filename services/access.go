package services

import (
	"tutorlink_go/models"
)

// Caller is the authenticated identity every operation runs as.
type Caller struct {
	UserID uint
	Role   models.Role
}

// Visibility is the query predicate a caller is allowed to read through.
// Zero pointers mean unrestricted on that axis.
type Visibility struct {
	StudentID *uint
	TeacherID *uint
}

// Unrestricted reports whether the caller sees the full ledger.
func (v Visibility) Unrestricted() bool {
	return v.StudentID == nil && v.TeacherID == nil
}

// AccessGuard centralizes every authorization decision. It is pure: no
// storage access, no mutation; callers hand it the records they already
// loaded.
type AccessGuard struct{}

func NewAccessGuard() *AccessGuard {
	return &AccessGuard{}
}

// CanMark allows the call's own teacher and staff roles to mark attendance.
func (g *AccessGuard) CanMark(caller Caller, call *models.ScheduledCall) bool {
	if caller.Role.IsStaff() {
		return true
	}
	return caller.Role == models.RoleTeacher && call.TeacherID == caller.UserID
}

// CanMutateCall covers reschedule/cancel/complete/delete, which share the
// same ownership rule as marking.
func (g *AccessGuard) CanMutateCall(caller Caller, call *models.ScheduledCall) bool {
	return g.CanMark(caller, call)
}

// CanMarkRecord applies the marking rule to a stored ledger row via the
// teacher denormalized onto it, so replays can be authorized without
// re-reading the call.
func (g *AccessGuard) CanMarkRecord(caller Caller, att *models.Attendance) bool {
	if caller.Role.IsStaff() {
		return true
	}
	return caller.Role == models.RoleTeacher && att.TeacherID == caller.UserID
}

// VisibilityFilter computes the read predicate for a caller. Staff may
// optionally narrow to one teacher via the explicit query parameter;
// students and teachers are always pinned to their own id.
func (g *AccessGuard) VisibilityFilter(caller Caller, teacherParam *uint) Visibility {
	switch caller.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
		return Visibility{TeacherID: teacherParam}
	case models.RoleTeacher:
		id := caller.UserID
		return Visibility{TeacherID: &id}
	default:
		id := caller.UserID
		return Visibility{StudentID: &id}
	}
}
