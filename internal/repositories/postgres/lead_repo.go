package postgres

import (
	"context"
	"errors"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/utils"
	"gorm.io/gorm"
)

type LeadRepo interface {
	FindByPhone(ctx context.Context, phone string) (*models.Lead, error)
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	Create(ctx context.Context, lead *models.Lead) error
	// UpdateFields applies a partial update; fields absent from the map
	// are left untouched.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

type leadRepo struct {
	db *gorm.DB
}

func NewLeadRepo(db *gorm.DB) LeadRepo {
	return &leadRepo{db: db}
}

func (r *leadRepo) FindByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	var row models.Lead
	err := r.db.WithContext(ctx).Where("phone = ?", phone).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *leadRepo) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	var row models.Lead
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *leadRepo) Create(ctx context.Context, lead *models.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *leadRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", id).
		Updates(fields).Error
}
