package persistent

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/crm-payments/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ExportArtifactRepo хранит готовые файлы выгрузок.
type ExportArtifactRepo struct {
	*s3client.S3Client
	bucket string
}

func NewExportArtifactRepo(s3c *s3client.S3Client, bucket string) *ExportArtifactRepo {
	return &ExportArtifactRepo{s3c, bucket}
}

func (r *ExportArtifactRepo) Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, size int64) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucketOr(bucket)),
		Key:           aws.String(key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("ExportArtifactRepo - Upload - r.Client.PutObject: %w", err)
	}

	return nil
}

func (r *ExportArtifactRepo) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := r.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketOr(bucket)),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("ExportArtifactRepo - PresignGet - r.Presign.PresignGetObject: %w", err)
	}

	return req.URL, nil
}

func (r *ExportArtifactRepo) Delete(ctx context.Context, bucket, key string) error {
	_, err := r.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucketOr(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ExportArtifactRepo - Delete - r.Client.DeleteObject: %w", err)
	}

	return nil
}

func (r *ExportArtifactRepo) bucketOr(bucket string) string {
	if bucket != "" {
		return bucket
	}

	return r.bucket
}
