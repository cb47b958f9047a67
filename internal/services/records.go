package services

import (
	"context"
	"time"

	"github.com/storeit/backend/internal/docstore"
)

const (
	usersCollection = "users"
	filesCollection = "files"
)

type User struct {
	ID        string    `doc:"id" json:"id" validate:"required"`
	FullName  string    `doc:"full_name" json:"fullName" validate:"required"`
	Email     string    `doc:"email" json:"email" validate:"required"`
	Avatar    string    `doc:"avatar" json:"avatar"`
	AccountID string    `doc:"account_id" json:"accountId" validate:"required"`
	CreatedAt time.Time `doc:"created_at" json:"createdAt"`
	UpdatedAt time.Time `doc:"updated_at" json:"updatedAt"`
}

type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeOther    FileType = "other"
)

var AllFileTypes = []FileType{FileTypeDocument, FileTypeImage, FileTypeVideo, FileTypeAudio, FileTypeOther}

// FileRecord is the strict shape of a files document. OwnerID is the stored
// reference; Owner is filled in on reads when the user document exists.
type FileRecord struct {
	ID           string    `doc:"id" json:"id" validate:"required"`
	CreatedAt    time.Time `doc:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `doc:"updated_at" json:"updatedAt"`
	Name         string    `doc:"name" json:"name" validate:"required"`
	Type         FileType  `doc:"type" json:"type" validate:"oneof=document image video audio other"`
	Extension    string    `doc:"extension" json:"extension"`
	Size         int64     `doc:"size" json:"size" validate:"gte=0"`
	URL          string    `doc:"url" json:"url"`
	BucketFileID string    `doc:"bucket_file_id" json:"bucketFileId" validate:"required"`
	OwnerID      string    `doc:"owner" json:"ownerId" validate:"required"`
	Owner        *User     `doc:"-" json:"owner,omitempty"`
	AccountID    string    `doc:"account_id" json:"accountId"`
	Users        []string  `doc:"users" json:"users"`
}

// VisibleTo reports whether user owns the file or is one of its collaborators.
func (f *FileRecord) VisibleTo(user *User) bool {
	if f.OwnerID == user.ID {
		return true
	}
	for _, email := range f.Users {
		if email == user.Email {
			return true
		}
	}
	return false
}

func decodeUser(doc docstore.Document) (*User, error) {
	var user User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func decodeFile(doc docstore.Document) (*FileRecord, error) {
	var file FileRecord
	if err := docstore.Decode(doc, &file); err != nil {
		return nil, err
	}
	if file.Users == nil {
		file.Users = []string{}
	}
	return &file, nil
}

// findUser returns the single user matching field, or nil when none does.
func findUser(ctx context.Context, store docstore.Store, field, value string) (*User, error) {
	docs, err := store.List(ctx, usersCollection, docstore.Equal(field, value), docstore.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeUser(docs[0])
}

func usersByID(ctx context.Context, store docstore.Store, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	docs, err := store.List(ctx, usersCollection, docstore.Equal("id", values...))
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		out[user.ID] = user
	}
	return out, nil
}
