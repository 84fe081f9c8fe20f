// Package objectstore 提供 S3 兼容对象存储（Cloudflare R2）实现
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"storyloom-ai-api/internal/config"
)

var tracer = otel.Tracer("objectstore")

// R2Store 生成图像的 R2 存储
type R2Store struct {
	client    *s3.Client
	bucket    string
	endpoint  string
	publicURL string
}

// NewR2Store 创建 R2 存储，未配置时返回 nil
func NewR2Store(cfg *config.R2Config) (*R2Store, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, nil
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", strings.TrimSpace(cfg.AccountID))
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if parsed, err := url.Parse(endpoint); err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid r2 endpoint: %s", endpoint)
	}

	client := s3.NewFromConfig(aws.Config{
		Region: "auto",
		Credentials: credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{
		client:    client,
		bucket:    strings.TrimSpace(cfg.Bucket),
		endpoint:  endpoint,
		publicURL: strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/"),
	}, nil
}

// Save 上传对象并返回公开 URL
func (s *R2Store) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "objectstore.R2Store.Save")
	defer span.End()

	key = normalizeObjectKey(key)
	if key == "" {
		return "", fmt.Errorf("invalid object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	span.SetAttributes(attribute.String("object.key", key), attribute.Int("object.size", len(data)))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return s.objectURL(key), nil
}

func (s *R2Store) objectURL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + encodeObjectKey(key)
	}
	return s.endpoint + "/" + s.bucket + "/" + encodeObjectKey(key)
}

func normalizeObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}

func encodeObjectKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
