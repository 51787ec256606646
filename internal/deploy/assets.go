package deploy

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/logging"
)

// Uploader stages stack assets before submission.
type Uploader interface {
	Upload(ctx context.Context, assets []core.Asset) error
}

// S3Uploader stages assets into their declared S3 locations.
type S3Uploader struct {
	client *s3.Client
}

// NewS3Uploader wraps an AWS config into an asset uploader.
func NewS3Uploader(cfg aws.Config) *S3Uploader {
	return &S3Uploader{client: s3.NewFromConfig(cfg)}
}

// Upload puts each asset's file at its bucket/key.
func (u *S3Uploader) Upload(ctx context.Context, assets []core.Asset) error {
	for _, a := range assets {
		f, err := os.Open(a.Path)
		if err != nil {
			return fmt.Errorf("failed to open asset %s: %w", a.Path, err)
		}
		logging.Info("uploading asset", "path", a.Path, "bucket", a.Bucket, "key", a.Key)
		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.Bucket),
			Key:    aws.String(a.Key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload asset %s to s3://%s/%s: %w", a.Path, a.Bucket, a.Key, err)
		}
	}
	return nil
}
