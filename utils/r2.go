// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"streak-tracker/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config points at a Cloudflare R2 bucket.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// Prefix is prepended to every object key, e.g. "cleanup-runs".
	Prefix string
	// Endpoint overrides the account endpoint (tests, other S3 providers).
	Endpoint string
}

// Enabled reports whether enough is configured to talk to R2.
func (c R2Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && (c.AccountID != "" || c.Endpoint != "")
}

// objectPutter is the part of the S3 client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver writes cleanup runs to R2 as JSON documents.
type R2Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

func NewR2Archiver(ctx context.Context, cfg R2Config) (*R2Archiver, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &R2Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ArchiveCleanupRun stores run under <prefix>/<yyyy>/<mm>/<dd>/<run id>.json.
func (a *R2Archiver) ArchiveCleanupRun(ctx context.Context, run *models.CleanupRun) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode cleanup run: %w", err)
	}
	key := path.Join(a.prefix, run.StartedAt.UTC().Format("2006/01/02"), run.ID+".json")

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}
