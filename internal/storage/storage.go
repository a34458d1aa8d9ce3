// Package storage uploads user media given as data URLs.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
)

var (
	ErrInvalidDataURL   = errors.New("invalid data url")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("media too large")
)

// Store 对象存储后端
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Media 上传结果
type Media struct {
	URL         string
	ContentType string
	Kind        model.MediaType
	Size        int
}

// Uploader 校验 data URL 内容后写入 Store
type Uploader struct {
	store    Store
	maxBytes int64
}

func NewUploader(store Store, maxBytes int64) *Uploader {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Uploader{store: store, maxBytes: maxBytes}
}

// IsDataURL reports whether s looks like a base64 data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}

// ParseDataURL 解析 data:<mime>;base64,<payload>
func ParseDataURL(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrInvalidDataURL
	}
	declared := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
	}
	return declared, data, nil
}

// Classify 按内容嗅探媒体类型，声明的 mime 不可信
func Classify(data []byte) (*mimetype.MIME, model.MediaType, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/gif"):
		return mt, model.MediaGIF, nil
	case strings.HasPrefix(mt.String(), "image/"):
		return mt, model.MediaImage, nil
	case strings.HasPrefix(mt.String(), "video/"):
		return mt, model.MediaVideo, nil
	}
	return mt, "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mt.String())
}

// UploadDataURL stores the decoded payload under folder and returns its public URL.
func (u *Uploader) UploadDataURL(ctx context.Context, folder, dataURL string) (*Media, error) {
	_, data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrInvalidDataURL
	}
	if int64(len(data)) > u.maxBytes {
		return nil, ErrTooLarge
	}
	mt, kind, err := Classify(data)
	if err != nil {
		return nil, err
	}

	key := path.Join(folder, time.Now().UTC().Format("2006/01/02"), uuid.New().String()+mt.Extension())
	start := time.Now()
	url, err := u.store.Put(ctx, key, mt.String(), data)
	metrics.ObserveExternal("storage", "put", start, err)
	if err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}
	return &Media{URL: url, ContentType: mt.String(), Kind: kind, Size: len(data)}, nil
}
