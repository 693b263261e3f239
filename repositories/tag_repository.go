package repositories

import (
	"context"

	"github.com/sylvexn/nexus/models"

	"gorm.io/gorm"
)

type GormTagRepository struct {
	db *gorm.DB
}

func NewGormTagRepository(db *gorm.DB) *GormTagRepository {
	return &GormTagRepository{db: db}
}

func (r *GormTagRepository) CreateAll(_ context.Context, tx *gorm.DB, fileID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, models.Tag{FileID: fileID, Name: name})
	}
	return useTx(r.db, tx).Create(&tags).Error
}

func (r *GormTagRepository) ReplaceForFile(ctx context.Context, tx *gorm.DB, fileID string, names []string) error {
	if err := useTx(r.db, tx).Where("file_id = ?", fileID).Delete(&models.Tag{}).Error; err != nil {
		return err
	}
	return r.CreateAll(ctx, tx, fileID, names)
}

func (r *GormTagRepository) ListByFileID(_ context.Context, tx *gorm.DB, fileID string) ([]models.Tag, error) {
	var tags []models.Tag
	err := useTx(r.db, tx).Where("file_id = ?", fileID).Find(&tags).Error
	return tags, err
}

func (r *GormTagRepository) DeleteByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("file_id IN ?", fileIDs).Delete(&models.Tag{}).Error
}
