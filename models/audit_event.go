package models

import "time"

// AuditEvent 面向审计协作方的生命周期事件，引擎只负责写入。
type AuditEvent struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID    uint      `gorm:"not null;index" json:"owner_id"`
	Action     string    `gorm:"type:varchar(30);not null;index" json:"action"`
	TargetType string    `gorm:"type:varchar(20);not null" json:"target_type"`
	TargetID   string    `gorm:"type:varchar(64);not null" json:"target_id"`
	Details    string    `gorm:"type:json" json:"details"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
