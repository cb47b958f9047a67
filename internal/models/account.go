package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an identity held by the local provider, addressed by email.
type Account struct {
	BaseModel
	Email string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
}

// OneTimeToken holds the sealed secret behind an emailed code. A token is
// single use and is deleted once exchanged or superseded.
type OneTimeToken struct {
	BaseModel
	AccountID    uuid.UUID `json:"accountID" gorm:"type:uuid;not null;index"`
	SealedSecret string    `json:"-" gorm:"type:text;not null"`
	IssuedAt     time.Time `json:"issuedAt" gorm:"not null"`
	ExpiresAt    time.Time `json:"expiresAt" gorm:"not null;index"`
	Attempts     int       `json:"attempts" gorm:"not null;default:0"`
}

func (OneTimeToken) TableName() string {
	return "one_time_tokens"
}

// Session backs a session credential. Deleting the row revokes the credential.
type Session struct {
	BaseModel
	AccountID uuid.UUID `json:"accountID" gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	IPAddress string    `json:"ipAddress" gorm:"type:varchar(45)"`
	UserAgent string    `json:"userAgent" gorm:"type:text"`
}

func (Session) TableName() string {
	return "sessions"
}
