package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ChatModel struct {
	ID          string    `gorm:"primaryKey"`
	UserID      string    `gorm:"not null;index"`
	ChatName    string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	LastUpdated time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"not null;index"`
	ChatID            string `gorm:"not null;index"`
	Sender            string `gorm:"not null"`
	Content           string `gorm:"type:text;not null"`
	Chapter           string
	Bookmarked        bool
	EditedAt          *time.Time
	ReplacesMessageID string
	Attachments       datatypes.JSON `gorm:"type:jsonb"`
	StructuredContent datatypes.JSON `gorm:"type:jsonb"`
	Timestamp         time.Time      `gorm:"not null;index"`
}

type BookmarkModel struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"not null;index"`
	LinkedMessageID string `gorm:"not null"`
	Snippet         string `gorm:"type:text;not null"`
	Type            string `gorm:"not null"`
	ChatID          string `gorm:"index"`
	Timestamp       time.Time
}

type UploadModel struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	StorageKey    string
	FileName      string `gorm:"not null"`
	FileType      string
	FileSize      int64
	Chapter       string
	ExtractedText string `gorm:"type:text"`
	FileURL       string
	UploadedAt    time.Time `gorm:"not null;index"`
}
