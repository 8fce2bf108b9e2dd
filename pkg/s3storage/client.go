// Хранилище скриншотов заказов. Клиент ничего не знает о распознавании:
// он только кладёт и отдаёт байты.

package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/specmatch/pkg/config"
	"github.com/ilkoid/specmatch/pkg/utils"
)

// ClientInterface определяет интерфейс для S3 клиента.
// Используется для мокания в тестах и внедрения зависимостей.
type ClientInterface interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (StoredObject, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует ClientInterface
var _ ClientInterface = (*Client)(nil)

// StoredObject - сырой объект из S3
type StoredObject struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// New создает клиент, используя наш конфиг
func New(cfg config.S3Config) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// ScreenshotKey строит ключ объекта: {prefix}{YYYY/MM/DD}/{uuid}.{ext}
func ScreenshotKey(prefix, contentType string, now time.Time) string {
	ext := "bin"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + path.Join(now.UTC().Format("2006/01/02"), uuid.NewString()+"."+ext)
}

// NewKey строит ключ с префиксом из конфигурации.
func (c *Client) NewKey(contentType string) string {
	return ScreenshotKey(c.prefix, contentType, time.Now())
}

// Upload кладёт объект в bucket.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (StoredObject, error) {
	start := time.Now()

	info, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		utils.Error("S3 upload failed", "key", key, "error", err)
		return StoredObject{}, fmt.Errorf("put object %s: %w", key, err)
	}

	utils.Info("S3 upload finished",
		"key", key,
		"size", info.Size,
		"duration_ms", time.Since(start).Milliseconds())

	return StoredObject{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

// DownloadFile скачивает объект целиком в память
func (c *Client) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	return buf.Bytes(), nil
}

// PresignedURL выдаёт временную ссылку на объект для ответа клиенту.
func (c *Client) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := c.api.PresignedGetObject(ctx, c.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
