// Package memstore holds in-memory repository implementations used by the
// service tests. They mirror the observable semantics of gormstore,
// including both unique constraints on the attendance ledger.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

type CallRepository struct {
	mu     sync.Mutex
	nextID uint
	calls  map[uint]models.ScheduledCall
}

func NewCallRepository() *CallRepository {
	return &CallRepository{nextID: 1, calls: make(map[uint]models.ScheduledCall)}
}

func (r *CallRepository) Create(_ context.Context, call *models.ScheduledCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if call.ID == 0 {
		call.ID = r.nextID
		r.nextID++
	} else if call.ID >= r.nextID {
		r.nextID = call.ID + 1
	}
	if call.Status == "" {
		call.Status = models.CallScheduled
	}
	call.CreatedAt = time.Now()
	call.UpdatedAt = call.CreatedAt
	r.calls[call.ID] = *call
	return nil
}

func (r *CallRepository) Get(_ context.Context, id uint) (*models.ScheduledCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	if !ok || call.IsDeleted {
		return nil, store.ErrNotFound
	}
	out := call
	return &out, nil
}

func (r *CallRepository) List(_ context.Context, f store.CallFilter) ([]models.ScheduledCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScheduledCall
	for _, call := range r.calls {
		if call.IsDeleted {
			continue
		}
		if f.TeacherID != nil && call.TeacherID != *f.TeacherID {
			continue
		}
		if f.BatchID != nil && call.BatchID != *f.BatchID {
			continue
		}
		if f.FromDate != nil && call.Date.Before(*f.FromDate) {
			continue
		}
		if f.ToDate != nil && call.Date.After(*f.ToDate) {
			continue
		}
		if f.Status != nil && call.Status != *f.Status {
			continue
		}
		out = append(out, call)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *CallRepository) UpdateIfStatus(_ context.Context, id uint, expected []models.CallStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	if !ok || call.IsDeleted {
		return false, store.ErrNotFound
	}
	matched := false
	for _, s := range expected {
		if call.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	for key, val := range updates {
		switch key {
		case "status":
			call.Status = val.(models.CallStatus)
		case "date":
			call.Date = val.(time.Time)
		case "start_time":
			call.StartTime = val.(string)
		case "end_time":
			call.EndTime = val.(string)
		case "previous_date":
			d := val.(time.Time)
			call.PreviousDate = &d
		case "previous_start_time":
			s := val.(string)
			call.PreviousStartTime = &s
		case "previous_end_time":
			s := val.(string)
			call.PreviousEndTime = &s
		}
	}
	call.UpdatedAt = time.Now()
	r.calls[id] = call
	return true, nil
}

func (r *CallRepository) MarkDeleted(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	if !ok || call.IsDeleted {
		return store.ErrNotFound
	}
	call.IsDeleted = true
	r.calls[id] = call
	return nil
}

type AttendanceRepository struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.Attendance // keyed by row id
	byCall map[uint]uint              // call id -> row id
	byKey  map[string]uint            // idempotency key -> row id
}

func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{
		nextID: 1,
		rows:   make(map[uint]models.Attendance),
		byCall: make(map[uint]uint),
		byKey:  make(map[string]uint),
	}
}

func (r *AttendanceRepository) GetByIdempotencyKey(_ context.Context, key string) (*models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	row := r.rows[id]
	return &row, nil
}

func (r *AttendanceRepository) GetByCallID(_ context.Context, callID uint) (*models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCall[callID]
	if !ok {
		return nil, store.ErrNotFound
	}
	row := r.rows[id]
	return &row, nil
}

func (r *AttendanceRepository) ExistsForCall(_ context.Context, callID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byCall[callID]
	return ok, nil
}

func (r *AttendanceRepository) UpsertByCall(_ context.Context, att *models.Attendance) (*models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Same logical submission already stored: return it untouched.
	if id, ok := r.byKey[att.IdempotencyKey]; ok {
		row := r.rows[id]
		return &row, nil
	}

	if id, ok := r.byCall[att.CallID]; ok {
		row := r.rows[id]
		delete(r.byKey, row.IdempotencyKey)
		row.Entries = att.Entries
		row.IdempotencyKey = att.IdempotencyKey
		row.BatchID = att.BatchID
		row.CourseID = att.CourseID
		row.TeacherID = att.TeacherID
		row.Date = att.Date
		row.CreatedBy = att.CreatedBy
		row.UpdatedAt = time.Now()
		r.rows[id] = row
		r.byKey[att.IdempotencyKey] = id
		return &row, nil
	}

	att.ID = r.nextID
	r.nextID++
	att.CreatedAt = time.Now()
	att.UpdatedAt = att.CreatedAt
	r.rows[att.ID] = *att
	r.byCall[att.CallID] = att.ID
	r.byKey[att.IdempotencyKey] = att.ID
	out := *att
	return &out, nil
}

func (r *AttendanceRepository) Query(_ context.Context, f store.AttendanceFilter) ([]models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Attendance
	for _, row := range r.rows {
		if f.FromDate != nil && row.Date.Before(*f.FromDate) {
			continue
		}
		if f.ToDate != nil && row.Date.After(*f.ToDate) {
			continue
		}
		if f.BatchID != nil && row.BatchID != *f.BatchID {
			continue
		}
		if f.CallID != nil && row.CallID != *f.CallID {
			continue
		}
		if f.TeacherID != nil && row.TeacherID != *f.TeacherID {
			continue
		}
		if f.StudentID != nil && !containsStudent(row.Entries, *f.StudentID) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CallID < out[j].CallID
	})
	return out, nil
}

// Count reports the total number of ledger rows; test helper.
func (r *AttendanceRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func containsStudent(entries models.StudentEntryList, studentID uint) bool {
	for _, e := range entries {
		if e.StudentID == studentID {
			return true
		}
	}
	return false
}

type ReferenceRepository struct {
	mu       sync.Mutex
	batches  map[uint]models.Batch
	courses  map[uint]models.Course
	users    map[uint]models.User
	enrolled map[uint][]uint
}

func NewReferenceRepository() *ReferenceRepository {
	return &ReferenceRepository{
		batches:  make(map[uint]models.Batch),
		courses:  make(map[uint]models.Course),
		users:    make(map[uint]models.User),
		enrolled: make(map[uint][]uint),
	}
}

// Seed helpers used by tests.

func (r *ReferenceRepository) AddBatch(b models.Batch, studentIDs ...uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = b
	r.enrolled[b.ID] = append([]uint(nil), studentIDs...)
}

func (r *ReferenceRepository) AddCourse(c models.Course) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[c.ID] = c
}

func (r *ReferenceRepository) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *ReferenceRepository) GetBatch(_ context.Context, id uint) (*models.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (r *ReferenceRepository) ListBatches(_ context.Context) ([]models.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Batch
	for _, b := range r.batches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ReferenceRepository) EnrolledStudentIDs(_ context.Context, batchID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.enrolled[batchID]...), nil
}

func (r *ReferenceRepository) GetCourse(_ context.Context, id uint) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *ReferenceRepository) UsersByIDs(_ context.Context, ids []uint) (map[uint]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *ReferenceRepository) BatchesByIDs(_ context.Context, ids []uint) (map[uint]models.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]models.Batch, len(ids))
	for _, id := range ids {
		if b, ok := r.batches[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (r *ReferenceRepository) CoursesByIDs(_ context.Context, ids []uint) (map[uint]models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]models.Course, len(ids))
	for _, id := range ids {
		if c, ok := r.courses[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}
