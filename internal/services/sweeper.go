package services

import (
	"context"
	"strings"
	"time"

	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/storage"
	"github.com/storeit/backend/pkg/logger"
)

// Sweeper deletes blobs that no file record points at, such as those left
// behind when a record delete succeeded but the blob delete did not.
type Sweeper struct {
	store docstore.Store
	blobs storage.BlobStore
	grace time.Duration
	now   func() time.Time
}

type SweepResult struct {
	Scanned  int      `json:"scanned"`
	Orphaned []string `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	Failed   int      `json:"failed"`
}

func NewSweeper(store docstore.Store, blobs storage.BlobStore, grace time.Duration) *Sweeper {
	return &Sweeper{store: store, blobs: blobs, grace: grace, now: time.Now}
}

// Sweep finds unreferenced blobs older than the grace period and deletes
// them unless dryRun is set. The grace period protects uploads whose record
// is still being written.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (*SweepResult, error) {
	docs, err := s.store.List(ctx, filesCollection)
	if err != nil {
		return nil, newError(KindPersistenceFailed, "sweeper.sweep", err)
	}
	referenced := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if id, ok := doc["bucket_file_id"].(string); ok {
			referenced[id] = true
		}
	}

	objects, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, newError(KindPersistenceFailed, "sweeper.sweep", err)
	}

	cutoff := s.now().Add(-s.grace)
	result := &SweepResult{Orphaned: []string{}}
	for _, obj := range objects {
		if strings.HasPrefix(obj.Key, auditExportPrefix) {
			continue
		}
		result.Scanned++
		if referenced[obj.Key] || obj.LastModified.After(cutoff) {
			continue
		}
		result.Orphaned = append(result.Orphaned, obj.Key)
		if dryRun {
			continue
		}
		if err := s.blobs.Delete(ctx, obj.Key); err != nil {
			result.Failed++
			logger.Error("blob_sweep_delete_failed", err, map[string]interface{}{
				"bucket_file_id": obj.Key,
			})
			continue
		}
		result.Deleted++
	}

	logger.Info("blob_sweep_completed", map[string]interface{}{
		"scanned":  result.Scanned,
		"orphaned": len(result.Orphaned),
		"deleted":  result.Deleted,
		"failed":   result.Failed,
		"dry_run":  dryRun,
	})
	return result, nil
}
