package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/storage"
	"github.com/storeit/backend/pkg/logger"
)

const downloadURLExpiry = 15 * time.Minute

type FileService struct {
	store       docstore.Store
	blobs       storage.BlobStore
	invalidator Invalidator
	audit       *AuditService
	capacity    int64
	newID       func() string
}

func NewFileService(store docstore.Store, blobs storage.BlobStore, invalidator Invalidator, audit *AuditService, capacity int64) *FileService {
	return &FileService{
		store:       store,
		blobs:       blobs,
		invalidator: invalidator,
		audit:       audit,
		capacity:    capacity,
		newID:       uuid.NewString,
	}
}

type UploadInput struct {
	Reader      io.Reader
	Size        int64
	Name        string
	ContentType string
	OwnerID     string
	AccountID   string
	Path        string
	IPAddress   string
}

// Upload stores the bytes and then the record. If the record cannot be
// written the blob is deleted again before UploadFailed is returned.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (*FileRecord, error) {
	const op = "files.upload"

	blobID := s.newID()
	opts := storage.ObjectOptions{ContentType: in.ContentType, Name: in.Name}
	if err := s.blobs.Upload(ctx, blobID, in.Reader, in.Size, opts); err != nil {
		logger.ErrorWithUser(in.OwnerID, "file_upload_failed", err, map[string]interface{}{
			"file_name": in.Name,
			"stage":     "blob",
		})
		return nil, newError(KindUploadFailed, op, err)
	}

	fileType, extension := Classify(in.Name)
	doc, err := s.store.Create(ctx, filesCollection, s.newID(), docstore.Document{
		"name":           in.Name,
		"type":           string(fileType),
		"extension":      extension,
		"size":           in.Size,
		"url":            s.blobs.URLFor(blobID),
		"bucket_file_id": blobID,
		"owner":          in.OwnerID,
		"account_id":     in.AccountID,
		"users":          []string{},
	})
	if err != nil {
		logger.ErrorWithUser(in.OwnerID, "file_upload_failed", err, map[string]interface{}{
			"file_name": in.Name,
			"stage":     "record",
		})
		if delErr := s.blobs.Delete(ctx, blobID); delErr != nil {
			logger.ErrorWithUser(in.OwnerID, "file_upload_rollback_failed", delErr, map[string]interface{}{
				"bucket_file_id": blobID,
			})
		}
		return nil, newError(KindUploadFailed, op, err)
	}

	record, err := decodeFile(doc)
	if err != nil {
		return nil, newError(KindPersistenceFailed, op, err)
	}

	s.invalidator.Invalidate(in.Path)
	logger.InfoWithUser(in.OwnerID, "file_uploaded", map[string]interface{}{
		"file_id":   record.ID,
		"file_name": record.Name,
		"size":      record.Size,
	})
	s.audit.LogAsync(AuditEntry{
		UserID:       in.OwnerID,
		Action:       "file.upload",
		ResourceType: "file",
		ResourceID:   record.ID,
		Details:      map[string]interface{}{"file_name": record.Name, "size": record.Size},
		IPAddress:    in.IPAddress,
	})
	return record, nil
}

// ListFiles returns the files visible to user that match filter. Rows the
// store returns are checked against VisibleTo as well, so the result always
// agrees with Get. Store failures are logged and degrade to an empty result.
func (s *FileService) ListFiles(ctx context.Context, user *User, filter ListFilter) ([]FileRecord, error) {
	docs, err := s.store.List(ctx, filesCollection, listQueries(user, filter)...)
	if err != nil {
		logger.ErrorWithUser(user.ID, "file_list_failed", err, nil)
		return []FileRecord{}, nil
	}

	records := make([]FileRecord, 0, len(docs))
	ownerIDs := make([]string, 0, len(docs))
	seen := make(map[string]bool)
	for _, doc := range docs {
		record, err := decodeFile(doc)
		if err != nil {
			logger.ErrorWithUser(user.ID, "file_list_decode_failed", err, map[string]interface{}{
				"file_id": doc.ID(),
			})
			return []FileRecord{}, nil
		}
		if !record.VisibleTo(user) {
			continue
		}
		records = append(records, *record)
		if !seen[record.OwnerID] {
			seen[record.OwnerID] = true
			ownerIDs = append(ownerIDs, record.OwnerID)
		}
	}

	owners, err := usersByID(ctx, s.store, ownerIDs)
	if err != nil {
		logger.ErrorWithUser(user.ID, "file_owner_lookup_failed", err, nil)
		return records, nil
	}
	for i := range records {
		records[i].Owner = owners[records[i].OwnerID]
	}
	return records, nil
}

func (s *FileService) load(ctx context.Context, op, fileID string) (*FileRecord, error) {
	doc, err := s.store.Get(ctx, filesCollection, fileID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, newError(KindNotFound, op, err)
	}
	if err != nil {
		logger.Error("file_lookup_failed", err, map[string]interface{}{"file_id": fileID, "op": op})
		return nil, newError(KindPersistenceFailed, op, err)
	}
	record, err := decodeFile(doc)
	if err != nil {
		logger.Error("file_decode_failed", err, map[string]interface{}{"file_id": fileID, "op": op})
		return nil, newError(KindPersistenceFailed, op, err)
	}
	return record, nil
}

// owned loads a file for mutation. Files the user does not own are reported
// as missing.
func (s *FileService) owned(ctx context.Context, op string, user *User, fileID string) (*FileRecord, error) {
	record, err := s.load(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != user.ID {
		logger.WarnWithUser(user.ID, "file_ownership_denied", map[string]interface{}{
			"file_id": fileID,
			"op":      op,
		})
		return nil, newError(KindNotFound, op, nil)
	}
	return record, nil
}

// Get returns one file visible to user, with its owner expanded.
func (s *FileService) Get(ctx context.Context, user *User, fileID string) (*FileRecord, error) {
	const op = "files.get"
	record, err := s.load(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	if !record.VisibleTo(user) {
		return nil, newError(KindNotFound, op, nil)
	}
	if owners, err := usersByID(ctx, s.store, []string{record.OwnerID}); err == nil {
		record.Owner = owners[record.OwnerID]
	}
	return record, nil
}

// DownloadURL returns a short-lived link to the bytes of a visible file.
func (s *FileService) DownloadURL(ctx context.Context, user *User, fileID string) (string, error) {
	const op = "files.download_url"
	record, err := s.Get(ctx, user, fileID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignedGetURL(ctx, record.BucketFileID, downloadURLExpiry, record.Name)
	if err != nil {
		logger.ErrorWithUser(user.ID, "file_presign_failed", err, map[string]interface{}{"file_id": fileID})
		return "", newError(KindPersistenceFailed, op, err)
	}
	return url, nil
}

func (s *FileService) update(ctx context.Context, op string, user *User, fileID string, fields docstore.Document) (*FileRecord, error) {
	doc, err := s.store.Update(ctx, filesCollection, fileID, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, newError(KindNotFound, op, err)
	}
	if err != nil {
		logger.ErrorWithUser(user.ID, "file_update_failed", err, map[string]interface{}{"file_id": fileID, "op": op})
		return nil, newError(KindPersistenceFailed, op, err)
	}
	record, err := decodeFile(doc)
	if err != nil {
		return nil, newError(KindPersistenceFailed, op, err)
	}
	record.Owner = user
	return record, nil
}

// Rename sets the display name to base.extension and touches nothing else.
func (s *FileService) Rename(ctx context.Context, user *User, fileID, base, extension, path, ipAddress string) (*FileRecord, error) {
	const op = "files.rename"
	before, err := s.owned(ctx, op, user, fileID)
	if err != nil {
		return nil, err
	}

	name := base + "." + extension
	record, err := s.update(ctx, op, user, fileID, docstore.Document{"name": name})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(path)
	s.audit.LogAsync(AuditEntry{
		UserID:       user.ID,
		Action:       "file.rename",
		ResourceType: "file",
		ResourceID:   fileID,
		Details:      map[string]interface{}{"from": before.Name, "to": name},
		IPAddress:    ipAddress,
	})
	return record, nil
}

// UpdateCollaborators replaces the collaborator list as given.
func (s *FileService) UpdateCollaborators(ctx context.Context, user *User, fileID string, emails []string, path, ipAddress string) (*FileRecord, error) {
	const op = "files.update_collaborators"
	if _, err := s.owned(ctx, op, user, fileID); err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []string{}
	}

	record, err := s.update(ctx, op, user, fileID, docstore.Document{"users": emails})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(path)
	s.audit.LogAsync(AuditEntry{
		UserID:       user.ID,
		Action:       "file.share",
		ResourceType: "file",
		ResourceID:   fileID,
		Details:      map[string]interface{}{"collaborators": len(emails)},
		IPAddress:    ipAddress,
	})
	return record, nil
}

// RemoveCollaborator drops email from current and saves the rest. A nil
// current list means the stored collaborators.
func (s *FileService) RemoveCollaborator(ctx context.Context, user *User, fileID string, current []string, email, path, ipAddress string) (*FileRecord, error) {
	if current == nil {
		record, err := s.owned(ctx, "files.remove_collaborator", user, fileID)
		if err != nil {
			return nil, err
		}
		current = record.Users
	}
	return s.UpdateCollaborators(ctx, user, fileID, withoutEmail(current, email), path, ipAddress)
}

func withoutEmail(emails []string, target string) []string {
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		if email != target {
			out = append(out, email)
		}
	}
	return out
}

// Delete removes the record and then its blob. A failed record delete leaves
// the blob alone. A failed blob delete only orphans the blob, which the
// sweeper reclaims later.
func (s *FileService) Delete(ctx context.Context, user *User, fileID, path, ipAddress string) error {
	const op = "files.delete"
	record, err := s.owned(ctx, op, user, fileID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, filesCollection, fileID); err != nil {
		logger.ErrorWithUser(user.ID, "file_delete_failed", err, map[string]interface{}{
			"file_id": fileID,
			"stage":   "record",
		})
		return newError(KindDeleteFailed, op, err)
	}

	if err := s.blobs.Delete(ctx, record.BucketFileID); err != nil {
		logger.ErrorWithUser(user.ID, "blob_orphaned", err, map[string]interface{}{
			"file_id":        fileID,
			"bucket_file_id": record.BucketFileID,
		})
	}

	s.invalidator.Invalidate(path)
	logger.InfoWithUser(user.ID, "file_deleted", map[string]interface{}{
		"file_id":   fileID,
		"file_name": record.Name,
	})
	s.audit.LogAsync(AuditEntry{
		UserID:       user.ID,
		Action:       "file.delete",
		ResourceType: "file",
		ResourceID:   fileID,
		Details:      map[string]interface{}{"file_name": record.Name},
		IPAddress:    ipAddress,
	})
	return nil
}
