package repositories

import (
	"context"

	"github.com/sylvexn/nexus/models"

	"gorm.io/gorm"
)

type GormCollectionRepository struct {
	db *gorm.DB
}

func NewGormCollectionRepository(db *gorm.DB) *GormCollectionRepository {
	return &GormCollectionRepository{db: db}
}

func (r *GormCollectionRepository) Create(_ context.Context, tx *gorm.DB, collection *models.Collection) error {
	return useTx(r.db, tx).Create(collection).Error
}

func (r *GormCollectionRepository) GetByIDAndOwner(_ context.Context, tx *gorm.DB, collectionID uint, ownerID uint) (models.Collection, error) {
	var collection models.Collection
	err := useTx(r.db, tx).Where("id = ? AND owner_id = ?", collectionID, ownerID).First(&collection).Error
	return collection, err
}

func (r *GormCollectionRepository) DeleteByID(_ context.Context, tx *gorm.DB, collectionID uint) error {
	return useTx(r.db, tx).Where("id = ?", collectionID).Delete(&models.Collection{}).Error
}

func (r *GormCollectionRepository) AddFile(_ context.Context, tx *gorm.DB, collectionID uint, fileID string) error {
	return useTx(r.db, tx).Create(&models.CollectionFile{CollectionID: collectionID, FileID: fileID}).Error
}

func (r *GormCollectionRepository) RemoveFile(_ context.Context, tx *gorm.DB, collectionID uint, fileID string) error {
	return useTx(r.db, tx).Where("collection_id = ? AND file_id = ?", collectionID, fileID).Delete(&models.CollectionFile{}).Error
}

func (r *GormCollectionRepository) ListFileIDs(_ context.Context, tx *gorm.DB, collectionID uint) ([]string, error) {
	var ids []string
	err := useTx(r.db, tx).Model(&models.CollectionFile{}).
		Where("collection_id = ?", collectionID).Pluck("file_id", &ids).Error
	return ids, err
}

func (r *GormCollectionRepository) DeleteMembershipsByCollectionID(_ context.Context, tx *gorm.DB, collectionID uint) error {
	return useTx(r.db, tx).Where("collection_id = ?", collectionID).Delete(&models.CollectionFile{}).Error
}

func (r *GormCollectionRepository) DeleteMembershipsByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("file_id IN ?", fileIDs).Delete(&models.CollectionFile{}).Error
}
