package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sylvexn/nexus/config"
	"github.com/sylvexn/nexus/logger"
	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/repositories"
	"github.com/sylvexn/nexus/storage"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"
)

// sniffHeaderSize 嗅探内容类型读取的前缀字节数。
const sniffHeaderSize = 3072

type IngestInput struct {
	Reader        io.Reader
	Filename      string
	DeclaredSize  int64
	ExpiryDays    int
	DownloadLimit int64
	Tags          []string
	CollectionID  uint
}

type IngestOutput struct {
	FileID string `json:"file_id"`
	Path   string `json:"path"`
}

type BulkDeleteOutput struct {
	DeletedCount int   `json:"deleted_count"`
	FreedBytes   int64 `json:"freed_bytes"`
}

type UpdateFileInput struct {
	ExpiryDays    *int
	DownloadLimit *int64
	Tags          []string
}

type FileAccessOutput struct {
	File         models.File
	AbsPath      string
	ContentType  string
	DownloadName string
}

type FileService interface {
	Ingest(ctx context.Context, ownerID uint, in IngestInput) (IngestOutput, error)
	Delete(ctx context.Context, ownerID uint, fileID string) error
	BulkDelete(ctx context.Context, ownerID uint, fileIDs []string) (BulkDeleteOutput, error)
	Rename(ctx context.Context, ownerID uint, fileID string, newID string) error
	UpdateFile(ctx context.Context, ownerID uint, fileID string, in UpdateFileInput) error
	GetDownloadInfo(ctx context.Context, fileID string, clientIP string, userAgent string) (FileAccessOutput, error)
	GetPreviewInfo(ctx context.Context, fileID string, clientIP string, userAgent string) (FileAccessOutput, error)
	ListTags(ctx context.Context, ownerID uint, fileID string) ([]models.Tag, error)
}

type fileService struct {
	txManager   TxManager
	store       *storage.Store
	users       repositories.UserRepository
	files       repositories.FileRepository
	tags        repositories.TagRepository
	collections repositories.CollectionRepository
	accessLogs  repositories.AccessLogRepository
	audit       repositories.AuditRepository
	rateLimiter repositories.RateLimiter
}

func NewFileService(
	txManager TxManager,
	store *storage.Store,
	users repositories.UserRepository,
	files repositories.FileRepository,
	tags repositories.TagRepository,
	collections repositories.CollectionRepository,
	accessLogs repositories.AccessLogRepository,
	audit repositories.AuditRepository,
	rateLimiter repositories.RateLimiter,
) FileService {
	return &fileService{
		txManager:   txManager,
		store:       store,
		users:       users,
		files:       files,
		tags:        tags,
		collections: collections,
		accessLogs:  accessLogs,
		audit:       audit,
		rateLimiter: rateLimiter,
	}
}

func (s *fileService) Ingest(ctx context.Context, ownerID uint, in IngestInput) (IngestOutput, error) {
	cfg := config.AppConfig

	if in.DeclaredSize > cfg.Storage.MaxFileSize {
		return IngestOutput{}, newAppError(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, "文件大小超出限制", nil)
	}

	if cfg.RateLimit.Enabled && s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, fmt.Sprintf("upload:%d", ownerID), cfg.RateLimit.UploadsPerMinute, time.Minute)
		if err != nil {
			return IngestOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "检查上传频率失败", err)
		}
		if !allowed {
			return IngestOutput{}, newAppError(CodeRateLimited, http.StatusTooManyRequests, "上传过于频繁，请稍后再试", nil)
		}
	}

	// 从字节内容嗅探真实类型，不信任客户端声明。
	header := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(in.Reader, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return IngestOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "读取上传内容失败", err)
	}
	header = header[:n]

	mtype := mimetype.Detect(header)
	if mtype.Is("application/octet-stream") {
		return IngestOutput{}, newAppError(CodeUnknownType, http.StatusUnsupportedMediaType, "无法识别的文件类型", nil)
	}

	category := mediaCategory(mtype.String())
	ext := normalizeExtension(in.Filename, mtype.Extension())
	tags := dedupeTags(in.Tags)

	fileID, err := NewFileID(cfg.Storage.FileIDLength)
	if err != nil {
		return IngestOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "生成文件标识失败", err)
	}

	if in.CollectionID > 0 {
		if _, err := s.collections.GetByIDAndOwner(ctx, nil, in.CollectionID, ownerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return IngestOutput{}, newAppError(CodeNotFound, http.StatusNotFound, "目标集合不存在", nil)
			}
			return IngestOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "校验目标集合失败", err)
		}
	}

	// 先落盘再提交元数据；元数据提交失败时删除字节，崩溃留下的孤儿由清扫回收。
	content := io.MultiReader(bytes.NewReader(header), in.Reader)
	written, err := s.store.WriteBlob(category, fileID, ext, io.LimitReader(content, cfg.Storage.MaxFileSize+1))
	if err != nil {
		return IngestOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "保存文件失败", err)
	}
	if written > cfg.Storage.MaxFileSize {
		_ = s.store.RemoveBlob(category, fileID, ext)
		return IngestOutput{}, newAppError(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, "文件大小超出限制", nil)
	}

	expiryDays := in.ExpiryDays
	if expiryDays <= 0 {
		expiryDays = cfg.Storage.DefaultExpiryDays
	}
	if expiryDays > cfg.Storage.MaxExpiryDays {
		expiryDays = cfg.Storage.MaxExpiryDays
	}

	record := models.File{
		ID:            fileID,
		OwnerID:       ownerID,
		OriginalName:  sanitizeFilename(in.Filename),
		Extension:     ext,
		MimeType:      mtype.String(),
		Category:      category,
		FileSize:      written,
		DownloadLimit: in.DownloadLimit,
		ExpiresAt:     time.Now().AddDate(0, 0, expiryDays),
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		reserved, err := s.users.TryReserveStorage(ctx, tx, ownerID, written)
		if err != nil {
			return err
		}
		if !reserved {
			user, userErr := s.users.GetByID(ctx, tx, ownerID)
			if userErr != nil {
				return userErr
			}
			return newAppErrorWithData(CodeQuotaExceeded, http.StatusBadRequest, "存储空间不足", map[string]interface{}{
				"storage_quota":   user.StorageQuota,
				"storage_used":    user.StorageUsed,
				"available_space": user.StorageQuota - user.StorageUsed,
				"required_space":  written,
			}, nil)
		}
		if err := s.files.Create(ctx, tx, &record); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newAppError(CodeIDExists, http.StatusConflict, "文件标识冲突", err)
			}
			return err
		}
		if err := s.tags.CreateAll(ctx, tx, fileID, tags); err != nil {
			return err
		}
		if in.CollectionID > 0 {
			if err := s.collections.AddFile(ctx, tx, in.CollectionID, fileID); err != nil {
				return err
			}
		}
		return s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionUpload, AuditTargetFile, fileID, map[string]interface{}{
			"original_name": record.OriginalName,
			"mime_type":     record.MimeType,
			"file_size":     written,
		}))
	})
	if err != nil {
		_ = s.store.RemoveBlob(category, fileID, ext)
		var appErr *AppError
		if errors.As(err, &appErr) {
			return IngestOutput{}, appErr
		}
		return IngestOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "保存文件记录失败", err)
	}

	return IngestOutput{FileID: fileID, Path: "/f/" + fileID + ext}, nil
}

func (s *fileService) Delete(ctx context.Context, ownerID uint, fileID string) error {
	file, err := s.files.GetActiveByID(ctx, nil, fileID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}
	if file.OwnerID != ownerID {
		return newAppError(CodeForbidden, http.StatusForbidden, "无权操作此文件", nil)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.deleteDependents(ctx, tx, []string{fileID}); err != nil {
			return err
		}
		if err := s.files.DeleteByIDs(ctx, tx, []string{fileID}); err != nil {
			return err
		}
		if err := s.users.SubStorageUsed(ctx, tx, ownerID, file.FileSize); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionDelete, AuditTargetFile, fileID, map[string]interface{}{
			"file_size": file.FileSize,
		}))
	})
	if err != nil {
		return newAppError(CodeInternal, http.StatusInternalServerError, "删除文件失败", err)
	}

	s.removeBlobAndArtifacts(file)
	return nil
}

func (s *fileService) BulkDelete(ctx context.Context, ownerID uint, fileIDs []string) (BulkDeleteOutput, error) {
	var deleted []models.File
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		files, err := s.files.GetActiveByIDsAndOwner(ctx, tx, ownerID, fileIDs, time.Now())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}

		ids := make([]string, 0, len(files))
		var totalBytes int64
		for _, f := range files {
			ids = append(ids, f.ID)
			totalBytes += f.FileSize
		}

		if err := s.deleteDependents(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.files.DeleteByIDs(ctx, tx, ids); err != nil {
			return err
		}
		// 同一属主只做一次扣减，避免多行并发扣减丢失更新。
		if err := s.users.SubStorageUsed(ctx, tx, ownerID, totalBytes); err != nil {
			return err
		}
		if err := s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionBulkDelete, AuditTargetFile, "", map[string]interface{}{
			"file_ids":    ids,
			"freed_bytes": totalBytes,
		})); err != nil {
			return err
		}

		deleted = files
		return nil
	})
	if err != nil {
		return BulkDeleteOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "批量删除失败", err)
	}

	var freed int64
	for _, f := range deleted {
		freed += f.FileSize
		s.removeBlobAndArtifacts(f)
	}
	return BulkDeleteOutput{DeletedCount: len(deleted), FreedBytes: freed}, nil
}

func (s *fileService) Rename(ctx context.Context, ownerID uint, fileID string, newID string) error {
	if !IsValidFileID(newID) {
		return newAppError(CodeInvalidID, http.StatusBadRequest, "文件标识格式不合法", nil)
	}

	file, err := s.files.GetActiveByIDAndOwner(ctx, nil, fileID, ownerID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}

	exists, err := s.files.ExistsID(ctx, nil, newID)
	if err != nil {
		return newAppError(CodeInternal, http.StatusInternalServerError, "校验文件标识失败", err)
	}
	if exists {
		return newAppError(CodeIDExists, http.StatusConflict, "文件标识已被占用", nil)
	}

	// 先移动字节再提交元数据，失败时把字节移回，原标识保持完整可用。
	if err := s.store.RenameBlob(file.Category, fileID, newID, file.Extension); err != nil {
		return newAppError(CodeInternal, http.StatusInternalServerError, "移动文件失败", err)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.UpdateByIDAndOwner(ctx, tx, fileID, ownerID, map[string]interface{}{"id": newID}); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionRename, AuditTargetFile, newID, map[string]interface{}{
			"old_id": fileID,
		}))
	})
	if err != nil {
		if renameErr := s.store.RenameBlob(file.Category, newID, fileID, file.Extension); renameErr != nil {
			logger.Warnf("回滚文件重命名失败 %s -> %s: %v", newID, fileID, renameErr)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return newAppError(CodeIDExists, http.StatusConflict, "文件标识已被占用", err)
		}
		return newAppError(CodeInternal, http.StatusInternalServerError, "重命名文件失败", err)
	}
	return nil
}

func (s *fileService) UpdateFile(ctx context.Context, ownerID uint, fileID string, in UpdateFileInput) error {
	cfg := config.AppConfig

	if _, err := s.files.GetActiveByIDAndOwner(ctx, nil, fileID, ownerID, time.Now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}

	updates := map[string]interface{}{}
	if in.ExpiryDays != nil {
		days := *in.ExpiryDays
		if days <= 0 || days > cfg.Storage.MaxExpiryDays {
			return newAppError(CodeInvalidInput, http.StatusBadRequest, "过期天数超出允许范围", nil)
		}
		updates["expires_at"] = time.Now().AddDate(0, 0, days)
	}
	if in.DownloadLimit != nil {
		if *in.DownloadLimit < 0 {
			return newAppError(CodeInvalidInput, http.StatusBadRequest, "下载次数限制不合法", nil)
		}
		updates["download_limit"] = *in.DownloadLimit
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := s.files.UpdateByIDAndOwner(ctx, tx, fileID, ownerID, updates); err != nil {
				return err
			}
		}
		if in.Tags != nil {
			if err := s.tags.ReplaceForFile(ctx, tx, fileID, dedupeTags(in.Tags)); err != nil {
				return err
			}
		}
		return s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionUpdate, AuditTargetFile, fileID, nil))
	})
	if err != nil {
		return newAppError(CodeInternal, http.StatusInternalServerError, "更新文件失败", err)
	}
	return nil
}

func (s *fileService) GetDownloadInfo(ctx context.Context, fileID string, clientIP string, userAgent string) (FileAccessOutput, error) {
	file, err := s.getActiveFile(ctx, fileID)
	if err != nil {
		return FileAccessOutput{}, err
	}

	// 先确认字节可以提供，再消耗下载次数；提供失败不得烧掉配额。
	out, err := s.accessOutput(file)
	if err != nil {
		return FileAccessOutput{}, err
	}

	counted, err := s.files.TryIncrementDownloads(ctx, nil, fileID)
	if err != nil {
		return FileAccessOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "更新下载计数失败", err)
	}
	if !counted {
		return FileAccessOutput{}, newAppError(CodeDownloadLimit, http.StatusForbidden, "下载次数已达上限", nil)
	}

	if err := s.accessLogs.Create(ctx, nil, &models.FileAccessLog{
		FileID:    fileID,
		Action:    "download",
		IPAddress: clientIP,
		UserAgent: userAgent,
	}); err != nil {
		logger.Warnf("写入访问日志失败 %s: %v", fileID, err)
	}

	return out, nil
}

func (s *fileService) GetPreviewInfo(ctx context.Context, fileID string, clientIP string, userAgent string) (FileAccessOutput, error) {
	file, err := s.getActiveFile(ctx, fileID)
	if err != nil {
		return FileAccessOutput{}, err
	}

	if err := s.files.IncrementViews(ctx, nil, fileID); err != nil {
		logger.Warnf("更新浏览计数失败 %s: %v", fileID, err)
	}
	if err := s.accessLogs.Create(ctx, nil, &models.FileAccessLog{
		FileID:    fileID,
		Action:    "view",
		IPAddress: clientIP,
		UserAgent: userAgent,
	}); err != nil {
		logger.Warnf("写入访问日志失败 %s: %v", fileID, err)
	}

	return s.accessOutput(file)
}

func (s *fileService) ListTags(ctx context.Context, ownerID uint, fileID string) ([]models.Tag, error) {
	if _, err := s.files.GetActiveByIDAndOwner(ctx, nil, fileID, ownerID, time.Now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return nil, newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}
	tags, err := s.tags.ListByFileID(ctx, nil, fileID)
	if err != nil {
		return nil, newAppError(CodeInternal, http.StatusInternalServerError, "查询标签失败", err)
	}
	return tags, nil
}

func (s *fileService) getActiveFile(ctx context.Context, fileID string) (models.File, error) {
	file, err := s.files.GetActiveByID(ctx, nil, fileID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return models.File{}, newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}
	return file, nil
}

func (s *fileService) accessOutput(file models.File) (FileAccessOutput, error) {
	absPath := s.store.BlobPath(file.Category, file.ID, file.Extension)
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		logger.Warnf("账本记录 %s 对应的文件不在存储中: %s", file.ID, absPath)
		return FileAccessOutput{}, newAppError(CodeNotFound, http.StatusNotFound, "文件不存在于存储中", nil)
	}
	return FileAccessOutput{
		File:         file,
		AbsPath:      absPath,
		ContentType:  file.MimeType,
		DownloadName: file.OriginalName,
	}, nil
}

func (s *fileService) deleteDependents(ctx context.Context, tx *gorm.DB, fileIDs []string) error {
	if err := s.tags.DeleteByFileIDs(ctx, tx, fileIDs); err != nil {
		return err
	}
	if err := s.collections.DeleteMembershipsByFileIDs(ctx, tx, fileIDs); err != nil {
		return err
	}
	return s.accessLogs.DeleteByFileIDs(ctx, tx, fileIDs)
}

// removeBlobAndArtifacts 在元数据提交之后尽力删除字节，失败交给孤儿清扫兜底。
func (s *fileService) removeBlobAndArtifacts(file models.File) {
	if err := s.store.RemoveBlob(file.Category, file.ID, file.Extension); err != nil && !os.IsNotExist(err) {
		logger.Warnf("删除文件字节失败 %s: %v", file.ID, err)
	}
	for _, preset := range ThumbnailPresets() {
		if err := os.Remove(s.store.ThumbPath(file.ID, preset.Width, preset.Height)); err != nil && !os.IsNotExist(err) {
			logger.Warnf("删除缩略图失败 %s: %v", file.ID, err)
		}
	}
}
