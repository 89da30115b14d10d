package services

import "errors"

// Error taxonomy surfaced by the call/attendance/report services.
// Controllers map these onto HTTP statuses; storage races never appear
// here because the repositories resolve them internally.
var (
	// ErrNotAuthorized - caller lacks permission for the target record.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrCallNotFound - the referenced scheduled call does not exist or is deleted.
	ErrCallNotFound = errors.New("call not found")

	// ErrBatchNotFound - the referenced batch does not exist.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrInvalidTransition - a state-machine precondition failed, e.g. the
	// call is already Completed or Cancelled. The caller should re-fetch
	// before deciding whether to retry.
	ErrInvalidTransition = errors.New("invalid call state transition")

	// ErrInvalidStudentEntry - a student id is outside the call's roster or
	// a status is not Present/Absent.
	ErrInvalidStudentEntry = errors.New("invalid student entry")

	// ErrHasDependentAttendance - deletion blocked because an attendance
	// row references the call. Never converted into a cascade.
	ErrHasDependentAttendance = errors.New("call has dependent attendance")

	// ErrInvalidCallSlot - a call date or HH:MM time failed validation.
	ErrInvalidCallSlot = errors.New("invalid call date or time")

	// ErrMissingIdempotencyKey - mark requests must carry a non-empty key,
	// otherwise client retries after a timeout could duplicate.
	ErrMissingIdempotencyKey = errors.New("idempotency key required")
)
