package version

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config carries the object-store settings for the archive mirror.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Archive mirrors committed version blobs into an S3-compatible bucket,
// keyed by content hash. It is a best-effort cold copy: the relational store
// stays authoritative and archive failures never fail a save.
type S3Archive struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

func NewS3Archive(cfg S3Config) (*S3Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Archive{client: client, bucket: bucket, region: region}, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("archive is nil")
	}
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// Archive uploads one record's content. The object key is hash-addressed,
// so identical content across versions and subjects stores once.
func (a *S3Archive) Archive(ctx context.Context, rec *Record) error {
	if a == nil {
		return fmt.Errorf("archive is nil")
	}
	if rec == nil || rec.ContentHash == "" {
		return fmt.Errorf("record is empty")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	key := objectKey(rec.ContentHash)
	content := []byte(rec.Content)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserMetadata: map[string]string{
			"subject-id": rec.SubjectID,
			"file-key":   string(rec.FileKey),
		},
	})
	return err
}

// Fetch reads an archived blob back by content hash.
func (a *S3Archive) Fetch(ctx context.Context, contentHash string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("archive is nil")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(contentHash), minio.GetObjectOptions{})
	if err != nil {
		return "", err
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func objectKey(hash string) string {
	// Two-level fanout keeps bucket listings sane.
	if len(hash) > 2 {
		return "blobs/" + hash[:2] + "/" + hash
	}
	return "blobs/" + hash
}
