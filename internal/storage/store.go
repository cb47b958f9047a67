package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/storeit/backend/internal/config"
)

// BlobStore holds file contents keyed by blob id.
type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, opts ObjectOptions) error
	Delete(ctx context.Context, key string) error
	// URLFor returns the stable view URL recorded on the file document.
	URLFor(key string) string
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	EnsureBucket(ctx context.Context) error
}

// ObjectOptions describes a blob being written. Name is the original file
// name; it is kept as object metadata and as the default download name.
type ObjectOptions struct {
	ContentType string
	Name        string
}

func (o ObjectOptions) contentType() string {
	if o.ContentType == "" {
		return "application/octet-stream"
	}
	return o.ContentType
}

// metadata is the user metadata written next to the bytes. Values are
// escaped because object stores only accept ASCII header values.
func (o ObjectOptions) metadata() map[string]string {
	if o.Name == "" {
		return nil
	}
	return map[string]string{originalNameKey: url.PathEscape(o.Name)}
}

const originalNameKey = "original-name"

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New builds the configured blob backend, decoding its options map.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Type {
	case "minio":
		var opts MinIOOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode minio storage options: %w", err)
		}
		return NewMinIOClient(opts)
	case "s3":
		var opts S3Options
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode s3 storage options: %w", err)
		}
		return NewS3Client(ctx, opts)
	case "memory":
		var opts struct {
			BaseURL string `mapstructure:"base_url"`
		}
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode memory storage options: %w", err)
		}
		return NewMemoryStore(opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

func contentDisposition(downloadName string) string {
	if downloadName == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": downloadName})
}
