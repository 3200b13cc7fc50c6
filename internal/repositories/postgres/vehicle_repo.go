package postgres

import (
	"context"
	"errors"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/utils"
	"gorm.io/gorm"
)

type VehicleRepo interface {
	ListAvailable(ctx context.Context, limit int) ([]models.Vehicle, error)
	GetByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

type vehicleRepo struct {
	db *gorm.DB
}

func NewVehicleRepo(db *gorm.DB) VehicleRepo {
	return &vehicleRepo{db: db}
}

func (r *vehicleRepo) ListAvailable(ctx context.Context, limit int) ([]models.Vehicle, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.Vehicle
	err := r.db.WithContext(ctx).
		Where("status = ?", models.VehicleAvailable).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *vehicleRepo) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var row models.Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *vehicleRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ?", id).
		Updates(fields).Error
}
