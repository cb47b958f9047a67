package models

import "time"

// File is the metadata document for one stored blob. Users holds the
// collaborator emails as a JSON array.
type File struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null;index"`
	Type         string    `json:"type" gorm:"type:varchar(20);not null;index"`
	Extension    string    `json:"extension" gorm:"type:varchar(32);not null"`
	Size         int64     `json:"size" gorm:"not null;default:0"`
	URL          string    `json:"url" gorm:"column:url;type:text;not null"`
	BucketFileID string    `json:"bucketFileId" gorm:"type:varchar(255);not null;index"`
	Owner        string    `json:"owner" gorm:"column:owner;type:varchar(36);not null;index"`
	AccountID    string    `json:"accountId" gorm:"type:varchar(36);not null"`
	Users        string    `json:"users" gorm:"column:users;type:text;not null;default:'[]'"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"not null"`
}

func (File) TableName() string {
	return "files"
}
