package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/storeit/backend/pkg/logger"
)

type MinIOOptions struct {
	Endpoint       string `mapstructure:"endpoint"`
	PublicEndpoint string `mapstructure:"public_endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Bucket         string `mapstructure:"bucket"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	Region         string `mapstructure:"region"`
}

type MinIOClient struct {
	client         *minio.Client
	publicClient   *minio.Client // signs URLs handed to browsers
	bucket         string
	publicEndpoint string
	useSSL         bool
}

func NewMinIOClient(opts MinIOOptions) (*MinIOClient, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("minio storage: endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("minio storage: bucket is required")
	}
	if opts.PublicEndpoint == "" {
		opts.PublicEndpoint = opts.Endpoint
	}

	// A fixed region keeps presigning offline.
	newClient := func(endpoint string) (*minio.Client, error) {
		return minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
			Secure: opts.UseSSL,
			Region: opts.Region,
		})
	}

	client, err := newClient(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	publicClient := client
	if opts.PublicEndpoint != opts.Endpoint {
		if publicClient, err = newClient(opts.PublicEndpoint); err != nil {
			return nil, err
		}
	}

	return &MinIOClient{
		client:         client,
		publicClient:   publicClient,
		bucket:         opts.Bucket,
		publicEndpoint: opts.PublicEndpoint,
		useSSL:         opts.UseSSL,
	}, nil
}

func (m *MinIOClient) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts ObjectOptions) error {
	contentType := opts.contentType()
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: contentDisposition(opts.Name),
		UserMetadata:       opts.metadata(),
	})
	if err != nil {
		logger.Error("minio_upload_failed", err, map[string]interface{}{
			"object_name":  key,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
	} else {
		logger.Info("minio_upload_success", map[string]interface{}{
			"object_name":  key,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
	}
	return err
}

func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("minio_delete_failed", err, map[string]interface{}{
			"object_name": key,
			"bucket":      m.bucket,
		})
	} else {
		logger.Info("minio_delete_success", map[string]interface{}{
			"object_name": key,
			"bucket":      m.bucket,
		})
	}
	return err
}

func (m *MinIOClient) URLFor(key string) string {
	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, strings.TrimSuffix(m.publicEndpoint, "/"), m.bucket, url.PathEscape(key))
}

func (m *MinIOClient) PresignedGetURL(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error) {
	query := make(url.Values)
	if disposition := contentDisposition(downloadName); disposition != "" {
		query.Set("response-content-disposition", disposition)
	}

	urlValue, err := m.publicClient.PresignedGetObject(ctx, m.bucket, key, expiry, query)
	if err != nil {
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objects, nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}
