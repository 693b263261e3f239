package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/repositories"

	"gorm.io/gorm"
)

type CollectionService interface {
	CreateCollection(ctx context.Context, ownerID uint, name string) (models.Collection, error)
	// DeleteCollection 删除集合及其成员关系，集合中的文件保持不动。
	DeleteCollection(ctx context.Context, ownerID uint, collectionID uint) error
	AddFile(ctx context.Context, ownerID uint, collectionID uint, fileID string) error
	RemoveFile(ctx context.Context, ownerID uint, collectionID uint, fileID string) error
	ListFiles(ctx context.Context, ownerID uint, collectionID uint) ([]models.File, error)
}

type collectionService struct {
	txManager   TxManager
	files       repositories.FileRepository
	collections repositories.CollectionRepository
	audit       repositories.AuditRepository
}

func NewCollectionService(
	txManager TxManager,
	files repositories.FileRepository,
	collections repositories.CollectionRepository,
	audit repositories.AuditRepository,
) CollectionService {
	return &collectionService{
		txManager:   txManager,
		files:       files,
		collections: collections,
		audit:       audit,
	}
}

func (s *collectionService) CreateCollection(ctx context.Context, ownerID uint, name string) (models.Collection, error) {
	if name == "" {
		return models.Collection{}, newAppError(CodeInvalidInput, http.StatusBadRequest, "集合名称不能为空", nil)
	}

	collection := models.Collection{OwnerID: ownerID, Name: name}
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.collections.Create(ctx, tx, &collection); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionCollectionCreate, AuditTargetCollection,
			strconv.FormatUint(uint64(collection.ID), 10), map[string]interface{}{"name": name}))
	})
	if err != nil {
		return models.Collection{}, newAppError(CodeInternal, http.StatusInternalServerError, "创建集合失败", err)
	}
	return collection, nil
}

func (s *collectionService) DeleteCollection(ctx context.Context, ownerID uint, collectionID uint) error {
	if _, err := s.getOwnedCollection(ctx, ownerID, collectionID); err != nil {
		return err
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.collections.DeleteMembershipsByCollectionID(ctx, tx, collectionID); err != nil {
			return err
		}
		if err := s.collections.DeleteByID(ctx, tx, collectionID); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, newAuditEvent(ownerID, AuditActionCollectionDelete, AuditTargetCollection,
			strconv.FormatUint(uint64(collectionID), 10), nil))
	})
	if err != nil {
		return newAppError(CodeInternal, http.StatusInternalServerError, "删除集合失败", err)
	}
	return nil
}

func (s *collectionService) AddFile(ctx context.Context, ownerID uint, collectionID uint, fileID string) error {
	if _, err := s.getOwnedCollection(ctx, ownerID, collectionID); err != nil {
		return err
	}
	if _, err := s.files.GetActiveByIDAndOwner(ctx, nil, fileID, ownerID, time.Now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}

	if err := s.collections.AddFile(ctx, nil, collectionID, fileID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return newAppError(CodeInternal, http.StatusInternalServerError, "加入集合失败", err)
	}
	return nil
}

func (s *collectionService) RemoveFile(ctx context.Context, ownerID uint, collectionID uint, fileID string) error {
	if _, err := s.getOwnedCollection(ctx, ownerID, collectionID); err != nil {
		return err
	}
	if err := s.collections.RemoveFile(ctx, nil, collectionID, fileID); err != nil {
		return newAppError(CodeInternal, http.StatusInternalServerError, "移出集合失败", err)
	}
	return nil
}

func (s *collectionService) ListFiles(ctx context.Context, ownerID uint, collectionID uint) ([]models.File, error) {
	if _, err := s.getOwnedCollection(ctx, ownerID, collectionID); err != nil {
		return nil, err
	}

	fileIDs, err := s.collections.ListFileIDs(ctx, nil, collectionID)
	if err != nil {
		return nil, newAppError(CodeInternal, http.StatusInternalServerError, "查询集合成员失败", err)
	}
	files, err := s.files.GetActiveByIDsAndOwner(ctx, nil, ownerID, fileIDs, time.Now())
	if err != nil {
		return nil, newAppError(CodeInternal, http.StatusInternalServerError, "查询集合文件失败", err)
	}
	return files, nil
}

func (s *collectionService) getOwnedCollection(ctx context.Context, ownerID uint, collectionID uint) (models.Collection, error) {
	collection, err := s.collections.GetByIDAndOwner(ctx, nil, collectionID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Collection{}, newAppError(CodeNotFound, http.StatusNotFound, "集合不存在", nil)
		}
		return models.Collection{}, newAppError(CodeInternal, http.StatusInternalServerError, "查询集合失败", err)
	}
	return collection, nil
}
