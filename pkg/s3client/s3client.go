package s3client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultRegion       = "us-east-1"
)

// S3Client - клиент S3-совместимого хранилища (MinIO, AWS) со статическими ключами.
type S3Client struct {
	connAttempts int
	connTimeout  time.Duration

	endpoint     string
	region       string
	accessKey    string
	secretKey    string
	usePathStyle bool
	bucket       string

	Client  *s3.Client
	Presign *s3.PresignClient
}

func New(ctx context.Context, endpoint, accessKey, secretKey string, opts ...Option) (*S3Client, error) {
	c := &S3Client{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		region:       _defaultRegion,
		endpoint:     endpoint,
		accessKey:    accessKey,
		secretKey:    secretKey,
		usePathStyle: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	// 1. конфиг без сети
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.accessKey, c.secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("S3Client - New - config.LoadDefaultConfig: %w", err)
	}

	c.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = c.usePathStyle
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
	c.Presign = s3.NewPresignClient(c.Client)

	// 2. ждем хранилище
	for attempt := c.connAttempts; attempt > 0; attempt-- {
		if err = c.check(ctx); err == nil {
			return c, nil
		}

		log.Printf("S3 is trying to connect, attempts left: %d", attempt)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("S3Client - New: %w", ctx.Err())
		case <-time.After(c.connTimeout):
		}
	}

	return nil, fmt.Errorf("S3Client - New - connAttempts == 0: %w", err)
}

// check проверяет доступность бакета и создает его, если он отсутствует.
// Без бакета проверяется только доступ к хранилищу.
func (c *S3Client) check(ctx context.Context) error {
	if c.bucket == "" {
		if _, err := c.Client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
			return fmt.Errorf("c.Client.ListBuckets: %w", err)
		}

		return nil
	}

	_, err := c.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("c.Client.HeadBucket %s: %w", c.bucket, err)
	}

	_, err = c.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}

		return fmt.Errorf("c.Client.CreateBucket %s: %w", c.bucket, err)
	}

	log.Printf("S3 bucket %s created", c.bucket)

	return nil
}
