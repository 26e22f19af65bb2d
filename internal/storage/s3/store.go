// Package s3 implements the blob storage backend on Amazon S3 or any
// S3-compatible object store. Entities reference blobs by path; the
// store never inspects content. Deleting an absent object is success.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/services"
	"teamdrive/internal/storage/pathlock"
)

// Store is an S3-backed implementation of services.Storage. Concurrent
// access to the same path is serialized by named locks: reads share,
// writes and duplications hold the destination exclusively.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	locks     *pathlock.Manager
	logger    *slog.Logger
}

// Config configures the S3 store. Endpoint is optional and enables
// S3-compatible stores (MinIO, localstack).
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
}

// NewStore builds the S3 client and verifies bucket access. The bucket
// must already exist.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err != nil {
		return nil, fmt.Errorf("verify bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info("blob store ready", "bucket", cfg.Bucket, "key_prefix", cfg.KeyPrefix)

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		locks:     pathlock.NewManager(),
		logger:    logger,
	}, nil
}

func (s *Store) key(p string) string {
	return s.keyPrefix + p
}

// Get reads the object at path.
func (s *Store) Get(ctx context.Context, p string) ([]byte, error) {
	release := s.locks.RLock(p)
	defer release()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", p, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get blob %s: %w", p, domain.ErrStorage)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", p, domain.ErrStorage)
	}

	return data, nil
}

// Put writes the object at path and returns the path.
func (s *Store) Put(ctx context.Context, p string, data []byte) (string, error) {
	release := s.locks.Lock(p)
	defer release()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w", p, domain.ErrStorage)
	}

	return p, nil
}

// Duplicate server-side copies the object to a fresh path and returns it.
func (s *Store) Duplicate(ctx context.Context, p string) (string, error) {
	newPath := duplicatePath(p)

	release := s.locks.Lock(newPath)
	defer release()
	releaseSrc := s.locks.RLock(p)
	defer releaseSrc()

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + s.key(p)),
		Key:        aws.String(s.key(newPath)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("blob %s: %w", p, domain.ErrNotFound)
		}
		return "", fmt.Errorf("duplicate blob %s: %w", p, domain.ErrStorage)
	}

	return newPath, nil
}

// Delete removes the object at path; an absent object counts as deleted.
func (s *Store) Delete(ctx context.Context, p string) error {
	release := s.locks.Lock(p)
	defer release()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete blob %s: %w", p, domain.ErrStorage)
	}

	return nil
}

// duplicatePath derives a sibling key with a fresh id, keeping the
// original extension so content sniffing downstream still works.
func duplicatePath(p string) string {
	dir := path.Dir(p)
	ext := path.Ext(p)
	name := uuid.NewString() + ext
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

var _ services.Storage = (*Store)(nil)
