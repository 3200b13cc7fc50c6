package postgres

import (
	"context"

	"github.com/menycars/copiloto/internal/models"
	"gorm.io/gorm"
)

type TaskRepo interface {
	CreateTask(ctx context.Context, task *models.Task) error
	CreateNote(ctx context.Context, note *models.LeadNote) error
	ListByLead(ctx context.Context, leadID string, limit int) ([]models.Task, error)
}

type taskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) TaskRepo {
	return &taskRepo{db: db}
}

func (r *taskRepo) CreateTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepo) CreateNote(ctx context.Context, note *models.LeadNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *taskRepo) ListByLead(ctx context.Context, leadID string, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Task
	err := r.db.WithContext(ctx).
		Where("related_lead_id = ?", leadID).
		Order("date DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
