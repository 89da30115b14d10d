package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

// ReferenceRepository reads batch/course/user reference data.
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) GetBatch(ctx context.Context, id uint) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Teacher").
		Preload("Students").
		First(&batch, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *ReferenceRepository) ListBatches(ctx context.Context) ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Teacher").
		Where("active = ?", true).
		Order("name ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *ReferenceRepository) EnrolledStudentIDs(ctx context.Context, batchID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.BatchStudent{}).
		Where("batch_id = ? AND status = ?", batchID, "active").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ReferenceRepository) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (r *ReferenceRepository) UsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *ReferenceRepository) BatchesByIDs(ctx context.Context, ids []uint) (map[uint]models.Batch, error) {
	out := make(map[uint]models.Batch, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var batches []models.Batch
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&batches).Error; err != nil {
		return nil, err
	}
	for _, b := range batches {
		out[b.ID] = b
	}
	return out, nil
}

func (r *ReferenceRepository) CoursesByIDs(ctx context.Context, ids []uint) (map[uint]models.Course, error) {
	out := make(map[uint]models.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var courses []models.Course
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, c := range courses {
		out[c.ID] = c
	}
	return out, nil
}
