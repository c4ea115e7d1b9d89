package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"loan-sync/config"
)

var errInvalidDataURL = errors.New("invalid data URL")

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// MediaService moves base64 data URLs (bill photos, ID scans, signatures)
// out of the rows and into S3, leaving the object URL in their place.
type MediaService struct {
	uploader uploader
	bucket   string
	region   string
}

func NewMediaService(cfg aws.Config, bucket string) *MediaService {
	return &MediaService{
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket:   bucket,
		region:   cfg.Region,
	}
}

// Offload uploads value when it is a data URL and returns the object URL.
// Anything else is returned as is.
func (m *MediaService) Offload(ctx context.Context, table, id, field string, value *string) (*string, error) {
	if value == nil || !strings.HasPrefix(*value, "data:") {
		return value, nil
	}

	contentType, data, err := parseDataURL(*value)
	if err != nil {
		return nil, fmt.Errorf("%s %s.%s: %w", table, id, field, err)
	}

	key := fmt.Sprintf("uploads/%s/%s/%s%s", table, url.PathEscape(id), field, extensionFor(contentType))
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("tải %s lên S3 thất bại: %w", key, err)
	}

	location := objectURL(m.bucket, m.region, key)
	config.Log.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("inline image offloaded")
	return &location, nil
}

// objectURL is the public URL of key. Buckets with dots in their name break
// the wildcard TLS certificate of virtual-hosted URLs, so they use path style.
func objectURL(bucket, region, key string) string {
	if strings.Contains(bucket, ".") {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", region, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// parseDataURL splits "data:<type>;base64,<payload>".
func parseDataURL(raw string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return "", nil, errInvalidDataURL
	}

	params := strings.Split(header, ";")
	contentType := params[0]
	if contentType == "" {
		contentType = "text/plain"
	}

	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, errInvalidDataURL
		}
		return contentType, []byte(decoded), nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errInvalidDataURL, err)
	}
	return contentType, data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "application/pdf":
		return ".pdf"
	}
	return ".bin"
}
