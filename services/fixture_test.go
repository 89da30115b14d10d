package services

import (
	"context"
	"testing"
	"time"

	"tutorlink_go/models"
	"tutorlink_go/store/memstore"
)

// Shared in-memory fixture for the service tests. IDs are fixed so the
// cases read without cross-referencing: teacher 10 owns batch 1, teacher
// 11 owns batch 2, students 100/101 are enrolled in batch 1 and student
// 101 additionally in batch 2.
const (
	staffID        = uint(1)
	teacherID      = uint(10)
	otherTeacherID = uint(11)
	studentAID     = uint(100)
	studentBID     = uint(101)
	outsiderID     = uint(200)
)

var (
	staffCaller        = Caller{UserID: staffID, Role: models.RoleAdmin}
	teacherCaller      = Caller{UserID: teacherID, Role: models.RoleTeacher}
	otherTeacherCaller = Caller{UserID: otherTeacherID, Role: models.RoleTeacher}
	studentACaller     = Caller{UserID: studentAID, Role: models.RoleStudent}
	studentBCaller     = Caller{UserID: studentBID, Role: models.RoleStudent}
	outsiderCaller     = Caller{UserID: outsiderID, Role: models.RoleStudent}
)

type fixture struct {
	calls  *memstore.CallRepository
	ledger *memstore.AttendanceRepository
	refs   *memstore.ReferenceRepository
	guard  *AccessGuard
}

func newFixture() *fixture {
	refs := memstore.NewReferenceRepository()
	refs.AddUser(models.User{BaseModel: models.BaseModel{ID: staffID}, Name: "Meera Iyer", Role: models.RoleAdmin})
	refs.AddUser(models.User{BaseModel: models.BaseModel{ID: teacherID}, Name: "Priya Sharma", Role: models.RoleTeacher})
	refs.AddUser(models.User{BaseModel: models.BaseModel{ID: otherTeacherID}, Name: "Rahul Verma", Role: models.RoleTeacher})
	refs.AddUser(models.User{BaseModel: models.BaseModel{ID: studentAID}, Name: "Aarav Patel", Role: models.RoleStudent})
	refs.AddUser(models.User{BaseModel: models.BaseModel{ID: studentBID}, Name: "Diya Singh", Role: models.RoleStudent})
	refs.AddCourse(models.Course{BaseModel: models.BaseModel{ID: 1}, Name: "Algebra Foundations"})
	refs.AddCourse(models.Course{BaseModel: models.BaseModel{ID: 2}, Name: "Physics Basics"})
	refs.AddBatch(models.Batch{BaseModel: models.BaseModel{ID: 1}, Name: "Math Morning Batch", CourseID: 1, TeacherID: teacherID}, studentAID, studentBID)
	refs.AddBatch(models.Batch{BaseModel: models.BaseModel{ID: 2}, Name: "Physics Evening Batch", CourseID: 2, TeacherID: otherTeacherID}, studentBID)

	return &fixture{
		calls:  memstore.NewCallRepository(),
		ledger: memstore.NewAttendanceRepository(),
		refs:   refs,
		guard:  NewAccessGuard(),
	}
}

func (f *fixture) callStore() *CallStore {
	return NewCallStore(f.calls, f.ledger, f.refs, f.guard)
}

func (f *fixture) attendanceLedger() *AttendanceLedger {
	return NewAttendanceLedger(f.calls, f.ledger, f.refs, f.guard)
}

func (f *fixture) reportEngine() *ReportEngine {
	return NewReportEngine(f.ledger, f.refs, f.guard)
}

// newCall seeds a scheduled call directly through the repository so the
// tests can set up state without going through the service under test.
func (f *fixture) newCall(t *testing.T, teacher, course, batch uint, date string, start, end string) *models.ScheduledCall {
	t.Helper()
	call := &models.ScheduledCall{
		TeacherID: teacher,
		CourseID:  course,
		BatchID:   batch,
		Date:      day(date),
		StartTime: start,
		EndTime:   end,
	}
	if err := f.calls.Create(context.Background(), call); err != nil {
		t.Fatalf("seeding call: %v", err)
	}
	return call
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func uintPtr(v uint) *uint {
	return &v
}
