package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/storeit/backend/internal/models"
	"github.com/storeit/backend/internal/storage"
	"github.com/storeit/backend/pkg/logger"
	"gorm.io/gorm"
)

const auditExportPrefix = "audit-logs/"

type AuditEntry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	IPAddress    string
}

type AuditService struct {
	DB      *gorm.DB
	Storage storage.BlobStore
	queue   chan models.AuditLog
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

func NewAuditService(db *gorm.DB, blobs storage.BlobStore) *AuditService {
	s := &AuditService{
		DB:      db,
		Storage: blobs,
		queue:   make(chan models.AuditLog, 1000),
		done:    make(chan struct{}),
	}
	go s.processQueue()
	return s
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// LogAsync queues an audit row. A nil service or a full queue drops the entry.
func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}
	row := models.AuditLog{
		UserID:       optionalString(entry.UserID),
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   optionalString(entry.ResourceID),
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

// Close stops accepting entries and waits until queued rows are written.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

// StartExporter periodically ships new audit rows to blob storage as NDJSON.
func (s *AuditService) StartExporter(ctx context.Context, interval time.Duration) {
	if s.Storage == nil {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Export(ctx); err != nil {
					logger.Error("audit_export_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

// Export uploads every row newer than the cursor and advances it. It
// returns the number of exported rows.
func (s *AuditService) Export(ctx context.Context) (int, error) {
	db := s.DB.WithContext(ctx)

	var cursor models.AuditExportCursor
	err := db.First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cursor = models.AuditExportCursor{
			LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		err = db.Create(&cursor).Error
	}
	if err != nil {
		return 0, fmt.Errorf("load export cursor: %w", err)
	}

	var logs []models.AuditLog
	if err := db.Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		return 0, fmt.Errorf("query audit logs: %w", err)
	}

	if len(logs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, log := range logs {
		if err := enc.Encode(log); err != nil {
			return 0, fmt.Errorf("encode audit log %s: %w", log.ID, err)
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("%s%s/%s.ndjson",
		auditExportPrefix,
		now.Format("2006/01/02"),
		now.Format("15-04-05.000"),
	)

	if err := s.Storage.Upload(ctx, objectName, &buf, int64(buf.Len()), storage.ObjectOptions{ContentType: "application/x-ndjson"}); err != nil {
		return 0, fmt.Errorf("upload %s: %w", objectName, err)
	}

	lastCreatedAt := logs[len(logs)-1].CreatedAt
	if err := db.Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	}).Error; err != nil {
		return 0, fmt.Errorf("advance export cursor: %w", err)
	}

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
	return len(logs), nil
}
