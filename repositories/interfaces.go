package repositories

import (
	"context"
	"time"

	"github.com/sylvexn/nexus/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error)
	GetByAPIKey(ctx context.Context, tx *gorm.DB, apiKey string) (models.User, error)
	// TryReserveStorage 以单条条件更新完成配额检查和占用，返回是否成功。
	// 并发上传依赖该语句的原子性，不允许退化为先读后写。
	TryReserveStorage(ctx context.Context, tx *gorm.DB, userID uint, delta int64) (bool, error)
	SubStorageUsed(ctx context.Context, tx *gorm.DB, userID uint, delta int64) error
	// RecalcStorageUsed 按存量文件重算已用空间，仅作为一致性修复工具。
	RecalcStorageUsed(ctx context.Context, tx *gorm.DB, userID uint) error
}

type FileRepository interface {
	Create(ctx context.Context, tx *gorm.DB, file *models.File) error
	// GetActiveByID 在查询内排除已过期的记录，过期文件对读路径视同不存在。
	GetActiveByID(ctx context.Context, tx *gorm.DB, fileID string, now time.Time) (models.File, error)
	GetActiveByIDAndOwner(ctx context.Context, tx *gorm.DB, fileID string, ownerID uint, now time.Time) (models.File, error)
	GetActiveByIDsAndOwner(ctx context.Context, tx *gorm.DB, ownerID uint, fileIDs []string, now time.Time) ([]models.File, error)
	ExistsID(ctx context.Context, tx *gorm.DB, fileID string) (bool, error)
	UpdateByIDAndOwner(ctx context.Context, tx *gorm.DB, fileID string, ownerID uint, updates map[string]interface{}) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, fileIDs []string) error
	ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]models.File, error)
	ListIDs(ctx context.Context, tx *gorm.DB) ([]string, error)
	IncrementViews(ctx context.Context, tx *gorm.DB, fileID string) error
	// TryIncrementDownloads 在下载计数未超过限制时加一，返回是否成功。
	TryIncrementDownloads(ctx context.Context, tx *gorm.DB, fileID string) (bool, error)
}

type TagRepository interface {
	CreateAll(ctx context.Context, tx *gorm.DB, fileID string, names []string) error
	ReplaceForFile(ctx context.Context, tx *gorm.DB, fileID string, names []string) error
	ListByFileID(ctx context.Context, tx *gorm.DB, fileID string) ([]models.Tag, error)
	DeleteByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []string) error
}

type CollectionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, collection *models.Collection) error
	GetByIDAndOwner(ctx context.Context, tx *gorm.DB, collectionID uint, ownerID uint) (models.Collection, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, collectionID uint) error
	AddFile(ctx context.Context, tx *gorm.DB, collectionID uint, fileID string) error
	RemoveFile(ctx context.Context, tx *gorm.DB, collectionID uint, fileID string) error
	ListFileIDs(ctx context.Context, tx *gorm.DB, collectionID uint) ([]string, error)
	DeleteMembershipsByCollectionID(ctx context.Context, tx *gorm.DB, collectionID uint) error
	DeleteMembershipsByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []string) error
}

type AccessLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.FileAccessLog) error
	DeleteByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []string) error
}

type AuditRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *models.AuditEvent) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Container struct {
	TxManager   TxManager
	Users       UserRepository
	Files       FileRepository
	Tags        TagRepository
	Collections CollectionRepository
	AccessLogs  AccessLogRepository
	Audit       AuditRepository
	RateLimiter RateLimiter
}
