package models

import "time"

// 媒体大类，决定文件在磁盘上的存储子目录。
const (
	CategoryImage = "image"
	CategoryVideo = "video"
	CategoryOther = "other"
)

type File struct {
	ID            string    `gorm:"type:varchar(16);primaryKey" json:"id"`
	OwnerID       uint      `gorm:"not null;index" json:"owner_id"`
	OriginalName  string    `gorm:"type:varchar(255);not null" json:"original_name"`
	Extension     string    `gorm:"type:varchar(16)" json:"extension"`
	MimeType      string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	Category      string    `gorm:"type:varchar(10);not null" json:"category"`
	FileSize      int64     `gorm:"not null" json:"file_size"`
	Views         int64     `gorm:"default:0" json:"views"`
	Downloads     int64     `gorm:"default:0" json:"downloads"`
	DownloadLimit int64     `gorm:"default:0" json:"download_limit"`
	ExpiresAt     time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (f *File) IsExpired(now time.Time) bool {
	return !f.ExpiresAt.After(now)
}
