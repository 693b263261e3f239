package repositories

import (
	"context"

	"github.com/sylvexn/nexus/models"

	"gorm.io/gorm"
)

type GormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Create(_ context.Context, tx *gorm.DB, event *models.AuditEvent) error {
	return useTx(r.db, tx).Create(event).Error
}

type GormAccessLogRepository struct {
	db *gorm.DB
}

func NewGormAccessLogRepository(db *gorm.DB) *GormAccessLogRepository {
	return &GormAccessLogRepository{db: db}
}

func (r *GormAccessLogRepository) Create(_ context.Context, tx *gorm.DB, entry *models.FileAccessLog) error {
	return useTx(r.db, tx).Create(entry).Error
}

func (r *GormAccessLogRepository) DeleteByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("file_id IN ?", fileIDs).Delete(&models.FileAccessLog{}).Error
}
