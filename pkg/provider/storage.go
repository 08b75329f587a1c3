package provider

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/theapemachine/mediagen/pkg/errors"
)

/*
Mirror copies finished assets from the generation backend into an S3
compatible bucket, so they outlive the backend's retention window.  A
nil Mirror is disabled and every Upload returns an empty URL.
*/
type Mirror struct {
	client    *minio.Client
	conn      *fiberClient.Client
	bucket    string
	publicURL string
	ensure    sync.Once
}

/*
NewMirror connects to an S3 compatible endpoint.  The bucket is created
on first upload when it does not exist yet.
*/
func NewMirror(endpoint, accessKey, secretKey, bucket, publicURL string) (*Mirror, error) {
	useSSL := strings.HasPrefix(publicURL, "https://") || !strings.Contains(endpoint, "localhost")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})

	if err != nil {
		return nil, err
	}

	return &Mirror{
		client:    client,
		conn:      fiberClient.New(),
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

/*
NewMirrorFromEnv builds a Mirror from MINIO_* environment variables and
returns nil when they are not set, which disables mirroring.
*/
func NewMirrorFromEnv() *Mirror {
	endpoint := os.Getenv("MINIO_ENDPOINT")

	if endpoint == "" {
		return nil
	}

	mirror, err := NewMirror(
		endpoint,
		os.Getenv("MINIO_ACCESS_KEY"),
		os.Getenv("MINIO_SECRET_KEY"),
		envOr("MINIO_BUCKET", "mediagen"),
		envOr("MINIO_PUBLIC_URL", "http://"+endpoint),
	)

	if err != nil {
		log.Error("failed to connect asset mirror", "endpoint", endpoint, "error", err)
		return nil
	}

	return mirror
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

/*
Upload downloads the asset behind assetURL and stores it under the
task's prefix.  Mirroring is best effort: on any failure it logs and
returns an empty URL, and the task keeps the backend URL.
*/
func (mirror *Mirror) Upload(ctx context.Context, taskID string, assetURL string) string {
	if mirror == nil || mirror.client == nil {
		return ""
	}

	mirror.ensure.Do(func() { mirror.ensureBucket(ctx) })

	res, err := mirror.conn.Get(assetURL, fiberClient.Config{Ctx: ctx})

	if err != nil || res.StatusCode() < 200 || res.StatusCode() >= 300 {
		log.Warn("failed to download asset for mirroring", "url", assetURL, "error", err)
		return ""
	}

	body := res.Body()
	objectName := taskID + "/" + objectBaseName(assetURL)

	err = errors.RetryWithBackoff(&errors.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}, func() error {
		_, putErr := mirror.client.PutObject(
			ctx, mirror.bucket, objectName,
			bytes.NewReader(body), int64(len(body)),
			minio.PutObjectOptions{ContentType: contentTypeFor(objectName)},
		)

		return putErr
	})

	if err != nil {
		log.Warn("failed to mirror asset", "object", objectName, "error", err)
		return ""
	}

	return mirror.publicURL + "/" + mirror.bucket + "/" + objectName
}

func (mirror *Mirror) ensureBucket(ctx context.Context) {
	exists, err := mirror.client.BucketExists(ctx, mirror.bucket)

	if err != nil {
		log.Warn("failed to check mirror bucket", "bucket", mirror.bucket, "error", err)
		return
	}

	if exists {
		return
	}

	if err := mirror.client.MakeBucket(ctx, mirror.bucket, minio.MakeBucketOptions{}); err != nil {
		log.Warn("failed to create mirror bucket", "bucket", mirror.bucket, "error", err)
	}
}

/*
objectBaseName extracts a stable object name from the asset URL, falling
back to "asset" when the URL has no usable path.
*/
func objectBaseName(assetURL string) string {
	parsed, err := url.Parse(assetURL)

	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return "asset"
	}

	base := path.Base(parsed.Path)

	if base == "." || base == "/" {
		return "asset"
	}

	return base
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
