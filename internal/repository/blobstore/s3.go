package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/TUD-CERT/docleaner/internal/identity"
)

// S3Config names an S3-compatible bucket and, for deployments against a
// non-AWS endpoint (MinIO, a test double), the endpoint and credentials to
// reach it directly instead of through the ambient AWS credential chain.
type S3Config struct {
	Bucket       string
	Region       string // defaults to "us-east-1"
	Endpoint     string // optional, for S3-compatible non-AWS endpoints
	AccessKey    string // optional, static credentials
	SecretKey    string
	UsePathStyle bool
}

// S3 is the production Store for deployments offloading payloads to an
// S3-compatible object store instead of the local filesystem.
type S3 struct {
	cli    *s3.Client
	bucket string
}

// NewS3 builds an S3 store from cfg. When AccessKey/SecretKey are unset it
// falls back to the ambient AWS credential chain (environment, shared
// config, container role).
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blobstore: S3 store requires a bucket name")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{cli: cli, bucket: cfg.Bucket}, nil
}

func (s *S3) Put(data []byte) (string, error) {
	key := identity.Generate()
	ctx := context.Background()
	_, err := s.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return key, nil
}

func (s *S3) Get(key string) ([]byte, error) {
	ctx := context.Background()
	out, err := s.cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3) Delete(key string) error {
	ctx := context.Background()
	_, err := s.cli.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}
