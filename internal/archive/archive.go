// Package archive uploads code packs to S3-compatible object storage so
// judges can inspect the exact evidence a verdict was based on.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Config selects the bucket and endpoint. Endpoint is optional for AWS
// itself and required for R2, MinIO and the like.
type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// S3Archive stores one object per run under <prefix>/<project>/<run>.md.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New builds an S3Archive. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "codepacks"
	}
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: prefix, logger: logger}, nil
}

// Key returns the object key for a run.
func (a *S3Archive) Key(projectID, runID string) string {
	return path.Join(a.prefix, projectID, runID+".md")
}

// Archive uploads content and returns its s3:// location.
func (a *S3Archive) Archive(ctx context.Context, projectID, runID, content string) (string, error) {
	key := a.Key(projectID, runID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
		Metadata: map[string]string{
			"project-id": projectID,
			"run-id":     runID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	a.logger.Debug("code pack uploaded", zap.String("bucket", a.bucket), zap.String("key", key), zap.Int("bytes", len(content)))
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
