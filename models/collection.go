package models

import "time"

type Collection struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CollectionFile 集合与文件的多对多关联，删除集合不会删除文件。
type CollectionFile struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	CollectionID uint   `gorm:"not null;index;uniqueIndex:idx_collection_file" json:"collection_id"`
	FileID       string `gorm:"type:varchar(16);not null;index;uniqueIndex:idx_collection_file" json:"file_id"`
}
