package gormstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

// CallRepository is the MySQL-backed call store.
type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

func (r *CallRepository) Create(ctx context.Context, call *models.ScheduledCall) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *CallRepository) Get(ctx context.Context, id uint) (*models.ScheduledCall, error) {
	var call models.ScheduledCall
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&call).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &call, nil
}

func (r *CallRepository) List(ctx context.Context, f store.CallFilter) ([]models.ScheduledCall, error) {
	q := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if f.TeacherID != nil {
		q = q.Where("teacher_id = ?", *f.TeacherID)
	}
	if f.BatchID != nil {
		q = q.Where("batch_id = ?", *f.BatchID)
	}
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var calls []models.ScheduledCall
	if err := q.Order("date ASC, start_time ASC").Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// UpdateIfStatus is the conditional write that serializes concurrent
// state-machine transitions: the status precondition is part of the
// UPDATE itself, so two racing transitions cannot both apply.
func (r *CallRepository) UpdateIfStatus(ctx context.Context, id uint, expected []models.CallStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledCall{}).
		Where("id = ? AND is_deleted = ? AND status IN ?", id, false, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// Distinguish "missing call" from "precondition failed".
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ScheduledCall{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (r *CallRepository) MarkDeleted(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledCall{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// isDuplicateErr recognizes unique-index violations. TranslateError is on
// for the shared gorm session, but the raw MySQL 1062 text is kept as a
// fallback for sessions opened without it.
func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
