package services

import (
	"context"
	"time"

	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/pkg/logger"
)

type TypeUsage struct {
	Size       int64      `json:"size"`
	LatestDate *time.Time `json:"latestDate"`
}

type StorageUsageSummary struct {
	Document TypeUsage `json:"document"`
	Image    TypeUsage `json:"image"`
	Video    TypeUsage `json:"video"`
	Audio    TypeUsage `json:"audio"`
	Other    TypeUsage `json:"other"`
	Used     int64     `json:"used"`
	All      int64     `json:"all"`
}

func (u *StorageUsageSummary) forType(t FileType) *TypeUsage {
	switch t {
	case FileTypeDocument:
		return &u.Document
	case FileTypeImage:
		return &u.Image
	case FileTypeVideo:
		return &u.Video
	case FileTypeAudio:
		return &u.Audio
	default:
		return &u.Other
	}
}

// ComputeStorageUsage totals the files user owns. Shared files count for
// their owner only.
func (s *FileService) ComputeStorageUsage(ctx context.Context, user *User) (*StorageUsageSummary, error) {
	const op = "files.compute_storage_usage"

	docs, err := s.store.List(ctx, filesCollection, docstore.Equal("owner", user.ID))
	if err != nil {
		logger.ErrorWithUser(user.ID, "storage_usage_failed", err, nil)
		return nil, newError(KindPersistenceFailed, op, err)
	}

	summary := &StorageUsageSummary{All: s.capacity}
	for _, doc := range docs {
		record, err := decodeFile(doc)
		if err != nil {
			logger.ErrorWithUser(user.ID, "storage_usage_decode_failed", err, map[string]interface{}{
				"file_id": doc.ID(),
			})
			return nil, newError(KindPersistenceFailed, op, err)
		}

		usage := summary.forType(record.Type)
		usage.Size += record.Size
		summary.Used += record.Size

		// Strictly newer only, so ties keep the first timestamp seen.
		if usage.LatestDate == nil || record.UpdatedAt.After(*usage.LatestDate) {
			updated := record.UpdatedAt
			usage.LatestDate = &updated
		}
	}
	return summary, nil
}
