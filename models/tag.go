package models

type Tag struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID string `gorm:"type:varchar(16);not null;index;uniqueIndex:idx_file_tag" json:"file_id"`
	Name   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_file_tag" json:"name"`
}
