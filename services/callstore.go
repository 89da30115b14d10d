package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

// activeStatuses are the only states a transition may start from.
var activeStatuses = []models.CallStatus{models.CallScheduled, models.CallRescheduled}

// CallStore owns the scheduled-call lifecycle. Transitions are applied as
// conditional updates so concurrent requests serialize at the storage
// layer; a failed precondition surfaces as ErrInvalidTransition and the
// caller re-reads before retrying.
type CallStore struct {
	calls      store.CallRepository
	attendance store.AttendanceRepository
	roster     store.ReferenceRepository
	guard      *AccessGuard
}

func NewCallStore(calls store.CallRepository, attendance store.AttendanceRepository, roster store.ReferenceRepository, guard *AccessGuard) *CallStore {
	return &CallStore{calls: calls, attendance: attendance, roster: roster, guard: guard}
}

// validateClockTime accepts wall-clock times in strict HH:MM form.
// time.Parse alone is lenient about leading zeros, so the length is
// pinned first.
func validateClockTime(value string) error {
	if len(value) != len("15:04") {
		return ErrInvalidCallSlot
	}
	if _, err := time.Parse("15:04", value); err != nil {
		return ErrInvalidCallSlot
	}
	return nil
}

// Create registers a new call in the Scheduled state.
func (s *CallStore) Create(ctx context.Context, caller Caller, call *models.ScheduledCall) (*models.ScheduledCall, error) {
	if !s.guard.CanMutateCall(caller, call) {
		return nil, ErrNotAuthorized
	}
	call.Status = models.CallScheduled
	call.IsDeleted = false
	if err := validateClockTime(call.StartTime); err != nil {
		return nil, err
	}
	if err := validateClockTime(call.EndTime); err != nil {
		return nil, err
	}
	if _, err := s.roster.GetBatch(ctx, call.BatchID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if err := s.calls.Create(ctx, call); err != nil {
		return nil, err
	}
	return call, nil
}

// Get loads a single call visible to the caller.
func (s *CallStore) Get(ctx context.Context, caller Caller, callID uint) (*models.ScheduledCall, error) {
	call, err := s.calls.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	if !s.guard.CanMutateCall(caller, call) && !s.visibleToStudent(ctx, caller, call) {
		return nil, ErrNotAuthorized
	}
	return call, nil
}

// List returns the caller's visible calls, optionally filtered.
func (s *CallStore) List(ctx context.Context, caller Caller, f store.CallFilter) ([]models.ScheduledCall, error) {
	vis := s.guard.VisibilityFilter(caller, f.TeacherID)
	if vis.TeacherID != nil {
		f.TeacherID = vis.TeacherID
	}
	calls, err := s.calls.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if vis.StudentID == nil {
		return calls, nil
	}
	// Students only see calls for batches they are enrolled in; the
	// filter runs against the denormalized batch on each call.
	out := calls[:0]
	for _, c := range calls {
		if s.enrolled(ctx, *vis.StudentID, c.BatchID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Reschedule snapshots the current slot into the previous* fields, moves
// the call to Rescheduled and applies the new date/times. Only
// Scheduled/Rescheduled calls may move; Completed and Cancelled are
// terminal.
func (s *CallStore) Reschedule(ctx context.Context, caller Caller, callID uint, newDate time.Time, newStart, newEnd string) (*models.ScheduledCall, error) {
	if err := validateClockTime(newStart); err != nil {
		return nil, err
	}
	if err := validateClockTime(newEnd); err != nil {
		return nil, err
	}

	call, err := s.loadForMutation(ctx, caller, callID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":              models.CallRescheduled,
		"date":                newDate,
		"start_time":          newStart,
		"end_time":            newEnd,
		"previous_date":       call.Date,
		"previous_start_time": call.StartTime,
		"previous_end_time":   call.EndTime,
	}
	return s.applyTransition(ctx, callID, updates)
}

// Cancel moves a call to the terminal Cancelled state.
func (s *CallStore) Cancel(ctx context.Context, caller Caller, callID uint) (*models.ScheduledCall, error) {
	if _, err := s.loadForMutation(ctx, caller, callID); err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, callID, map[string]interface{}{"status": models.CallCancelled})
}

// Complete moves a call to the terminal Completed state.
func (s *CallStore) Complete(ctx context.Context, caller Caller, callID uint) (*models.ScheduledCall, error) {
	if _, err := s.loadForMutation(ctx, caller, callID); err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, callID, map[string]interface{}{"status": models.CallCompleted})
}

// SoftDelete flags the call deleted unless the ledger references it. The
// check runs explicitly here, not in a storage hook, and a dependent row
// aborts the delete without mutating anything.
func (s *CallStore) SoftDelete(ctx context.Context, caller Caller, callID uint) error {
	if _, err := s.loadForMutation(ctx, caller, callID); err != nil {
		return err
	}

	exists, err := s.attendance.ExistsForCall(ctx, callID)
	if err != nil {
		return err
	}
	if exists {
		return ErrHasDependentAttendance
	}

	if err := s.calls.MarkDeleted(ctx, callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCallNotFound
		}
		return err
	}
	logrus.WithField("call_id", callID).Info("call soft-deleted")
	return nil
}

func (s *CallStore) loadForMutation(ctx context.Context, caller Caller, callID uint) (*models.ScheduledCall, error) {
	call, err := s.calls.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	if !s.guard.CanMutateCall(caller, call) {
		return nil, ErrNotAuthorized
	}
	return call, nil
}

func (s *CallStore) applyTransition(ctx context.Context, callID uint, updates map[string]interface{}) (*models.ScheduledCall, error) {
	applied, err := s.calls.UpdateIfStatus(ctx, callID, activeStatuses, updates)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidTransition
	}
	call, err := s.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	return call, nil
}

func (s *CallStore) visibleToStudent(ctx context.Context, caller Caller, call *models.ScheduledCall) bool {
	if caller.Role != models.RoleStudent {
		return false
	}
	return s.enrolled(ctx, caller.UserID, call.BatchID)
}

func (s *CallStore) enrolled(ctx context.Context, studentID, batchID uint) bool {
	// Enrollment lives in reference data; CallStore only needs a yes/no,
	// resolved through the attendance ledger's reference repo by the
	// report engine elsewhere. Here the batch on the call is enough.
	if s.roster == nil {
		return false
	}
	ids, err := s.roster.EnrolledStudentIDs(ctx, batchID)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == studentID {
			return true
		}
	}
	return false
}
