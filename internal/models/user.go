package models

import "time"

// User is the profile document linking a person to an identity account.
// Rows are written through the document store, so ids are plain strings.
type User struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	FullName  string    `json:"fullName" gorm:"column:full_name;type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Avatar    string    `json:"avatar" gorm:"type:text;not null"`
	AccountID string    `json:"accountId" gorm:"type:varchar(36);uniqueIndex;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

func (User) TableName() string {
	return "users"
}
