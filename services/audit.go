package services

import (
	"encoding/json"

	"github.com/sylvexn/nexus/models"
)

// 审计事件动作，与审计协作方约定的生命周期词表。
const (
	AuditActionUpload           = "upload"
	AuditActionDelete           = "delete"
	AuditActionBulkDelete       = "bulk_delete"
	AuditActionRename           = "rename"
	AuditActionUpdate           = "update"
	AuditActionExpiryGC         = "expiry_gc"
	AuditActionCollectionCreate = "collection_create"
	AuditActionCollectionDelete = "collection_delete"
)

const (
	AuditTargetFile       = "file"
	AuditTargetCollection = "collection"
	AuditTargetOwner      = "owner"
)

func newAuditEvent(ownerID uint, action, targetType, targetID string, details map[string]interface{}) *models.AuditEvent {
	// details 列是 JSON 类型，空串会被 MySQL 拒绝，必须落一个空对象。
	blob := "{}"
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			blob = string(data)
		}
	}
	return &models.AuditEvent{
		OwnerID:    ownerID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    blob,
	}
}
