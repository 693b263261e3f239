package repositories

import (
	"context"

	"github.com/sylvexn/nexus/models"

	"gorm.io/gorm"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) GetByID(_ context.Context, tx *gorm.DB, userID uint) (models.User, error) {
	var user models.User
	err := useTx(r.db, tx).First(&user, userID).Error
	return user, err
}

func (r *GormUserRepository) GetByAPIKey(_ context.Context, tx *gorm.DB, apiKey string) (models.User, error) {
	var user models.User
	err := useTx(r.db, tx).Where("api_key = ?", apiKey).First(&user).Error
	return user, err
}

func (r *GormUserRepository) TryReserveStorage(_ context.Context, tx *gorm.DB, userID uint, delta int64) (bool, error) {
	if delta <= 0 {
		return true, nil
	}
	result := useTx(r.db, tx).Model(&models.User{}).
		Where("id = ? AND storage_used + ? <= storage_quota", userID, delta).
		UpdateColumn("storage_used", gorm.Expr("storage_used + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormUserRepository) SubStorageUsed(_ context.Context, tx *gorm.DB, userID uint, delta int64) error {
	if delta <= 0 {
		return nil
	}
	return useTx(r.db, tx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("storage_used", gorm.Expr("GREATEST(storage_used - ?, 0)", delta)).Error
}

func (r *GormUserRepository) RecalcStorageUsed(_ context.Context, tx *gorm.DB, userID uint) error {
	return useTx(r.db, tx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("storage_used", gorm.Expr(
			"(SELECT COALESCE(SUM(file_size), 0) FROM files WHERE owner_id = ?)", userID)).Error
}
