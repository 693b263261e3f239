package repositories

import (
	"context"
	"time"

	"github.com/sylvexn/nexus/models"

	"gorm.io/gorm"
)

type GormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) Create(_ context.Context, tx *gorm.DB, file *models.File) error {
	return useTx(r.db, tx).Create(file).Error
}

func (r *GormFileRepository) GetActiveByID(_ context.Context, tx *gorm.DB, fileID string, now time.Time) (models.File, error) {
	var file models.File
	err := useTx(r.db, tx).Where("id = ? AND expires_at > ?", fileID, now).First(&file).Error
	return file, err
}

func (r *GormFileRepository) GetActiveByIDAndOwner(_ context.Context, tx *gorm.DB, fileID string, ownerID uint, now time.Time) (models.File, error) {
	var file models.File
	err := useTx(r.db, tx).Where("id = ? AND owner_id = ? AND expires_at > ?", fileID, ownerID, now).First(&file).Error
	return file, err
}

func (r *GormFileRepository) GetActiveByIDsAndOwner(_ context.Context, tx *gorm.DB, ownerID uint, fileIDs []string, now time.Time) ([]models.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var files []models.File
	err := useTx(r.db, tx).Where("id IN ? AND owner_id = ? AND expires_at > ?", fileIDs, ownerID, now).Find(&files).Error
	return files, err
}

func (r *GormFileRepository) ExistsID(_ context.Context, tx *gorm.DB, fileID string) (bool, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.File{}).Where("id = ?", fileID).Count(&count).Error
	return count > 0, err
}

func (r *GormFileRepository) UpdateByIDAndOwner(_ context.Context, tx *gorm.DB, fileID string, ownerID uint, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.File{}).Where("id = ? AND owner_id = ?", fileID, ownerID).Updates(updates).Error
}

func (r *GormFileRepository) DeleteByIDs(_ context.Context, tx *gorm.DB, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("id IN ?", fileIDs).Delete(&models.File{}).Error
}

func (r *GormFileRepository) ListExpired(_ context.Context, tx *gorm.DB, now time.Time, limit int) ([]models.File, error) {
	var files []models.File
	query := useTx(r.db, tx).Where("expires_at <= ?", now).Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&files).Error
	return files, err
}

func (r *GormFileRepository) ListIDs(_ context.Context, tx *gorm.DB) ([]string, error) {
	var ids []string
	err := useTx(r.db, tx).Model(&models.File{}).Pluck("id", &ids).Error
	return ids, err
}

func (r *GormFileRepository) IncrementViews(_ context.Context, tx *gorm.DB, fileID string) error {
	return useTx(r.db, tx).Model(&models.File{}).
		Where("id = ?", fileID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *GormFileRepository) TryIncrementDownloads(_ context.Context, tx *gorm.DB, fileID string) (bool, error) {
	result := useTx(r.db, tx).Model(&models.File{}).
		Where("id = ? AND (download_limit = 0 OR downloads < download_limit)", fileID).
		UpdateColumn("downloads", gorm.Expr("downloads + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
