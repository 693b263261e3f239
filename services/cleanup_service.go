package services

import (
	"context"
	"os"
	"time"

	"github.com/sylvexn/nexus/config"
	"github.com/sylvexn/nexus/logger"
	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/repositories"
	"github.com/sylvexn/nexus/storage"

	"gorm.io/gorm"
)

// orphanGraceWindow 内新写入的字节不当作孤儿：上传先落盘后提交元数据，
// 事务提交前的字节还没有账本行，清早了会留下指向空处的元数据。
const orphanGraceWindow = time.Hour

type GCResult struct {
	FilesCleaned int            `json:"files_cleaned"`
	BytesFreed   int64          `json:"bytes_freed"`
	PerOwner     map[uint]int64 `json:"per_owner"`
}

type OrphanSweepResult struct {
	ThumbnailsRemoved int `json:"thumbnails_removed"`
	BlobsRemoved      int `json:"blobs_removed"`
}

type CleanupService interface {
	// RunExpiryGC 回收所有已过期文件：单个事务内删除从属行和文件行并逐属主
	// 冲减配额，事务提交后再尽力删除字节。可安全重复执行。
	RunExpiryGC(ctx context.Context) (GCResult, error)
	RunOrphanSweep(ctx context.Context) (OrphanSweepResult, error)
}

type cleanupService struct {
	txManager   TxManager
	store       *storage.Store
	users       repositories.UserRepository
	files       repositories.FileRepository
	tags        repositories.TagRepository
	collections repositories.CollectionRepository
	accessLogs  repositories.AccessLogRepository
	audit       repositories.AuditRepository
	thumbnails  ThumbnailService
}

func NewCleanupService(
	txManager TxManager,
	store *storage.Store,
	users repositories.UserRepository,
	files repositories.FileRepository,
	tags repositories.TagRepository,
	collections repositories.CollectionRepository,
	accessLogs repositories.AccessLogRepository,
	audit repositories.AuditRepository,
	thumbnails ThumbnailService,
) CleanupService {
	return &cleanupService{
		txManager:   txManager,
		store:       store,
		users:       users,
		files:       files,
		tags:        tags,
		collections: collections,
		accessLogs:  accessLogs,
		audit:       audit,
		thumbnails:  thumbnails,
	}
}

func (s *cleanupService) RunExpiryGC(ctx context.Context) (GCResult, error) {
	result := GCResult{PerOwner: map[uint]int64{}}
	var expired []models.File

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		expired, err = s.files.ListExpired(ctx, tx, time.Now(), config.AppConfig.GC.BatchSize)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, 0, len(expired))
		perOwner := map[uint]int64{}
		perOwnerCount := map[uint]int{}
		for _, f := range expired {
			ids = append(ids, f.ID)
			perOwner[f.OwnerID] += f.FileSize
			perOwnerCount[f.OwnerID]++
		}

		// 从属行先删，文件行后删。
		if err := s.tags.DeleteByFileIDs(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.collections.DeleteMembershipsByFileIDs(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.accessLogs.DeleteByFileIDs(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.files.DeleteByIDs(ctx, tx, ids); err != nil {
			return err
		}

		// 每个属主一次扣减。
		for ownerID, bytes := range perOwner {
			if err := s.users.SubStorageUsed(ctx, tx, ownerID, bytes); err != nil {
				return err
			}
			if err := s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionExpiryGC, AuditTargetOwner, "", map[string]interface{}{
				"files_cleaned": perOwnerCount[ownerID],
				"bytes_freed":   bytes,
			})); err != nil {
				return err
			}
		}

		result.FilesCleaned = len(expired)
		result.PerOwner = perOwner
		for _, bytes := range perOwner {
			result.BytesFreed += bytes
		}
		return nil
	})
	if err != nil {
		// 事务整体回滚，过期文件留给下一次调度。
		return GCResult{PerOwner: map[uint]int64{}}, err
	}

	// 文件系统操作不在事务内：字节删不掉只记日志，元数据删除已经生效，
	// 残留的孤儿字节由孤儿清扫兜底。
	for _, f := range expired {
		if err := s.store.RemoveBlob(f.Category, f.ID, f.Extension); err != nil {
			if os.IsNotExist(err) {
				logger.Warnf("过期文件 %s 的字节已不在磁盘上", f.ID)
			} else {
				logger.Warnf("删除过期文件字节失败 %s: %v", f.ID, err)
			}
		}
		for _, preset := range ThumbnailPresets() {
			if err := os.Remove(s.store.ThumbPath(f.ID, preset.Width, preset.Height)); err != nil && !os.IsNotExist(err) {
				logger.Warnf("删除过期文件缩略图失败 %s: %v", f.ID, err)
			}
		}
	}

	if result.FilesCleaned > 0 {
		logger.Infof("过期回收完成: 清理 %d 个文件, 释放 %d 字节", result.FilesCleaned, result.BytesFreed)
	}
	return result, nil
}

func (s *cleanupService) RunOrphanSweep(ctx context.Context) (OrphanSweepResult, error) {
	ids, err := s.files.ListIDs(ctx, nil)
	if err != nil {
		return OrphanSweepResult{}, err
	}
	live := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	result := OrphanSweepResult{}
	result.ThumbnailsRemoved, err = s.thumbnails.SweepOrphans(ctx, live)
	if err != nil {
		return result, err
	}

	blobs, err := s.store.ListBlobs()
	if err != nil {
		return result, err
	}
	cutoff := time.Now().Add(-orphanGraceWindow)
	for relPath, id := range blobs {
		if _, ok := live[id]; ok {
			continue
		}
		info, err := s.store.StatRel(relPath)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.store.RemoveRel(relPath); err != nil {
			logger.Warnf("删除孤儿文件失败 %s: %v", relPath, err)
			continue
		}
		result.BlobsRemoved++
	}

	if result.ThumbnailsRemoved > 0 || result.BlobsRemoved > 0 {
		logger.Infof("孤儿清扫完成: 缩略图 %d, 文件 %d", result.ThumbnailsRemoved, result.BlobsRemoved)
	}
	return result, nil
}
