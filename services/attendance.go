package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

// MarkEntry is one student's mark in an incoming request.
type MarkEntry struct {
	StudentID uint                    `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=Present Absent"`
}

// Notifier receives fire-and-forget events after a successful state
// change. Implementations must never block the caller; the ledger invokes
// them outside the transaction boundary.
type Notifier interface {
	AttendanceMarked(att *models.Attendance, call *models.ScheduledCall)
}

// AttendanceLedger records who attended a given call, exactly once per
// logical submission. Two uniqueness constraints hold at all times: one
// row per call id, and one row per idempotency key.
type AttendanceLedger struct {
	calls    store.CallRepository
	ledger   store.AttendanceRepository
	roster   store.ReferenceRepository
	guard    *AccessGuard
	notifier Notifier

	now func() time.Time
}

func NewAttendanceLedger(calls store.CallRepository, ledger store.AttendanceRepository, roster store.ReferenceRepository, guard *AccessGuard) *AttendanceLedger {
	return &AttendanceLedger{
		calls:  calls,
		ledger: ledger,
		roster: roster,
		guard:  guard,
		now:    time.Now,
	}
}

// SetNotifier wires the post-mark collaborator. Optional.
func (l *AttendanceLedger) SetNotifier(n Notifier) {
	l.notifier = n
}

// Mark is the idempotent upsert at the heart of the ledger.
//
// Step 1: an existing row under the same idempotency key is the same
// logical submission - authorize the caller against it, then return it
// unchanged, mutating nothing.
// Step 2: resolve the owning call and authorize; denormalized fields are
// copied from the call at this instant.
// Step 3: validate every entry against the call's enrolled roster.
// Step 4: atomic upsert keyed by call id - a row already present for the
// call (correction under a new key) is overwritten in place, and a lost
// first-time insert race resolves to the winning row instead of an error.
func (l *AttendanceLedger) Mark(ctx context.Context, caller Caller, callID uint, idempotencyKey string, entries []MarkEntry) (*models.Attendance, error) {
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}

	// Step 1: duplicate-submission fast path. A replay still goes through
	// the guard before the stored row is handed back.
	if existing, err := l.ledger.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
		if !l.guard.CanMarkRecord(caller, existing) {
			return nil, ErrNotAuthorized
		}
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// Step 2: resolve the call and authorize before touching storage.
	call, err := l.calls.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	if !l.guard.CanMark(caller, call) {
		return nil, ErrNotAuthorized
	}

	// Step 3: entries must be a subset of the enrolled roster.
	if err := l.validateEntries(ctx, call.BatchID, entries); err != nil {
		return nil, err
	}

	markedAt := l.now()
	rows := make(models.StudentEntryList, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.StudentEntry{
			StudentID: e.StudentID,
			Status:    e.Status,
			MarkedAt:  markedAt,
			MarkedBy:  caller.UserID,
		})
	}

	att := &models.Attendance{
		UUID:           uuid.New().String(),
		CallID:         call.ID,
		BatchID:        call.BatchID,
		CourseID:       call.CourseID,
		TeacherID:      call.TeacherID,
		Date:           call.Date,
		Entries:        rows,
		CreatedBy:      caller.UserID,
		IdempotencyKey: idempotencyKey,
	}

	// Step 4: atomic upsert; unique-index races resolve to the winner.
	result, err := l.ledger.UpsertByCall(ctx, att)
	if err != nil {
		return nil, err
	}

	if l.notifier != nil {
		go func(a models.Attendance, c models.ScheduledCall) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("panic", r).Error("panic recovered in attendance notifier")
				}
			}()
			l.notifier.AttendanceMarked(&a, &c)
		}(*result, *call)
	}

	logrus.WithFields(logrus.Fields{
		"call_id":  call.ID,
		"batch_id": call.BatchID,
		"students": len(rows),
	}).Info("attendance marked")

	return result, nil
}

// Record returns the ledger row for one call, scoped by the caller's
// visibility.
func (l *AttendanceLedger) Record(ctx context.Context, caller Caller, callID uint) (*models.Attendance, error) {
	att, err := l.ledger.GetByCallID(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	vis := l.guard.VisibilityFilter(caller, nil)
	if vis.TeacherID != nil && att.TeacherID != *vis.TeacherID {
		return nil, ErrNotAuthorized
	}
	if vis.StudentID != nil {
		found := false
		for _, e := range att.Entries {
			if e.StudentID == *vis.StudentID {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrNotAuthorized
		}
	}
	return att, nil
}

func (l *AttendanceLedger) validateEntries(ctx context.Context, batchID uint, entries []MarkEntry) error {
	if len(entries) == 0 {
		return ErrInvalidStudentEntry
	}
	enrolled, err := l.roster.EnrolledStudentIDs(ctx, batchID)
	if err != nil {
		return err
	}
	roster := make(map[uint]struct{}, len(enrolled))
	for _, id := range enrolled {
		roster[id] = struct{}{}
	}
	seen := make(map[uint]struct{}, len(entries))
	for _, e := range entries {
		if e.StudentID == 0 || !e.Status.Valid() {
			return ErrInvalidStudentEntry
		}
		if _, ok := roster[e.StudentID]; !ok {
			return ErrInvalidStudentEntry
		}
		if _, dup := seen[e.StudentID]; dup {
			return ErrInvalidStudentEntry
		}
		seen[e.StudentID] = struct{}{}
	}
	return nil
}
