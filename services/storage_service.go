package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/apex/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
)

// StorageService issues time-limited download URLs for email attachments.
// Attachment bytes live in an S3-compatible bucket written by the ingestion
// pipeline; the dashboard only ever reads. Signed URLs are cached in Redis
// for a fraction of their lifetime so repeated opens of the same attachment
// do not re-sign, and a missing Redis only costs the caching.
type StorageService struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	cache  *redis.Client
}

// NewStorageService creates a new attachment storage service. redisAddr may
// be empty to disable URL caching.
func NewStorageService(endpoint, accessKey, secretKey, bucket string, useSSL bool, ttlSeconds int, redisAddr string) (*StorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	s := &StorageService{
		client: client,
		bucket: bucket,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}

	if redisAddr != "" {
		s.cache = redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := s.cache.Ping(context.Background()).Err(); err != nil {
			log.Warnf("Redis unavailable at %s, signed URLs will not be cached: %v", redisAddr, err)
			s.cache = nil
		}
	}

	return s, nil
}

// SignedURL returns a presigned GET URL for a stored attachment.
// ttlSeconds overrides the configured lifetime when positive, capped at the
// configured value so callers cannot extend exposure.
func (s *StorageService) SignedURL(ctx context.Context, storagePath string, ttlSeconds int) (string, int, error) {
	ttl := s.ttl
	if ttlSeconds > 0 && time.Duration(ttlSeconds)*time.Second < ttl {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	expiresIn := int(ttl.Seconds())
	cacheKey := fmt.Sprintf("signed-url:%s:%d", storagePath, expiresIn)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			return cached, expiresIn, nil
		}
		if err != redis.Nil {
			log.Warnf("Failed to read signed URL cache: %v", err)
		}
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, storagePath, ttl, url.Values{})
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign URL for %s: %w", storagePath, err)
	}

	if s.cache != nil {
		// Cache for half the URL lifetime so clients never receive a URL
		// that is about to expire.
		if err := s.cache.Set(ctx, cacheKey, signed.String(), ttl/2).Err(); err != nil {
			log.Warnf("Failed to cache signed URL: %v", err)
		}
	}

	return signed.String(), expiresIn, nil
}
