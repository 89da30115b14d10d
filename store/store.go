package store

import (
	"context"
	"errors"
	"time"

	"tutorlink_go/models"
)

// Storage-level sentinels. Services translate these into their own error
// taxonomy; controllers never see them directly.
var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// CallFilter narrows call listings.
type CallFilter struct {
	TeacherID *uint
	BatchID   *uint
	FromDate  *time.Time
	ToDate    *time.Time
	Status    *models.CallStatus
}

// AttendanceFilter narrows ledger queries. StudentID matches rows whose
// entry list contains that student. FromDate/ToDate are inclusive; the
// caller is responsible for widening ToDate to end-of-day.
type AttendanceFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	BatchID   *uint
	StudentID *uint
	CallID    *uint
	TeacherID *uint
}

// CallRepository owns scheduled-call persistence. Get and List exclude
// soft-deleted calls.
type CallRepository interface {
	Create(ctx context.Context, call *models.ScheduledCall) error
	Get(ctx context.Context, id uint) (*models.ScheduledCall, error)
	List(ctx context.Context, f CallFilter) ([]models.ScheduledCall, error)

	// UpdateIfStatus applies updates only while the call's current status
	// is one of expected. It reports false when the call exists but the
	// conditional update matched no row, which is how concurrent
	// transitions serialize.
	UpdateIfStatus(ctx context.Context, id uint, expected []models.CallStatus, updates map[string]interface{}) (bool, error)

	MarkDeleted(ctx context.Context, id uint) error
}

// AttendanceRepository owns the ledger. UpsertByCall is the atomic
// primitive the mark path leans on: it inserts a new row for the call or
// overwrites the existing one, and resolves unique-index races internally
// so the caller always gets the winning row back.
type AttendanceRepository interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Attendance, error)
	GetByCallID(ctx context.Context, callID uint) (*models.Attendance, error)
	ExistsForCall(ctx context.Context, callID uint) (bool, error)
	UpsertByCall(ctx context.Context, att *models.Attendance) (*models.Attendance, error)
	Query(ctx context.Context, f AttendanceFilter) ([]models.Attendance, error)
}

// ReferenceRepository reads the batch/course/user reference data the
// report joins need. All methods are read-only.
type ReferenceRepository interface {
	GetBatch(ctx context.Context, id uint) (*models.Batch, error)
	ListBatches(ctx context.Context) ([]models.Batch, error)
	EnrolledStudentIDs(ctx context.Context, batchID uint) ([]uint, error)
	GetCourse(ctx context.Context, id uint) (*models.Course, error)
	UsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
	BatchesByIDs(ctx context.Context, ids []uint) (map[uint]models.Batch, error)
	CoursesByIDs(ctx context.Context, ids []uint) (map[uint]models.Course, error)
}
