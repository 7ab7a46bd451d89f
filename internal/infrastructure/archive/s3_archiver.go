// Package archive persists raw platform payloads to object storage so
// normalization bugs can be replayed against the original data.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	appsync "github.com/finsight/backend/internal/application/sync"
	"github.com/finsight/backend/internal/domain/platform"
	infraconfig "github.com/finsight/backend/internal/infrastructure/config"
)

// Ensure S3Archiver implements RawArchiver
var _ appsync.RawArchiver = (*S3Archiver)(nil)

// S3Archiver writes raw fetch payloads to an S3-compatible bucket.
// It is compatible with any S3-compatible storage (AWS S3, MinIO, etc.)
type S3Archiver struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
	now    func() time.Time
}

// S3ArchiverOption is a functional option for configuring S3Archiver
type S3ArchiverOption func(*S3Archiver)

// WithLogger sets a custom logger for S3Archiver
func WithLogger(logger *zap.Logger) S3ArchiverOption {
	return func(a *S3Archiver) {
		a.logger = logger
	}
}

// WithClock overrides the timestamp source used in object keys.
func WithClock(now func() time.Time) S3ArchiverOption {
	return func(a *S3Archiver) {
		a.now = now
	}
}

// NewS3Archiver creates an archiver from configuration. An empty Endpoint
// targets AWS; set it for MinIO or other S3-compatible backends.
func NewS3Archiver(cfg *infraconfig.ArchiveConfig, opts ...S3ArchiverOption) (*S3Archiver, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			if _, err := url.Parse(endpoint); err == nil {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		}
	})

	a := &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewS3ArchiverWithClient creates an archiver with an existing S3 client.
// Useful for testing or when sharing a client across components.
func NewS3ArchiverWithClient(client *s3.Client, bucket string, opts ...S3ArchiverOption) *S3Archiver {
	a := &S3Archiver{
		client: client,
		bucket: bucket,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive stores a batch of raw records under
// raw/{user}/{platform}/{kind}/{timestamp}.json. An empty batch is a no-op.
func (a *S3Archiver) Archive(ctx context.Context, userID string, p platform.Platform, kind string, records []platform.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode archive payload: %w", err)
	}

	key := archiveKey(userID, p, kind, a.now().UTC())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s payload: %w", kind, err)
	}

	a.logger.Debug("archived raw payload",
		zap.String("key", key),
		zap.Int("records", len(records)),
	)
	return nil
}

func archiveKey(userID string, p platform.Platform, kind string, at time.Time) string {
	return fmt.Sprintf("raw/%s/%s/%s/%s.json", userID, p, kind, at.Format("20060102T150405.000Z"))
}
