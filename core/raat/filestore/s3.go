package filestore

import (
	"context"
	"fmt"
	"io"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/uuid/v5"

	"condor-raat/config"
)

type s3Store struct {
	client *s3.Client
	bucket string
}

// NewS3 opens an S3-compatible bucket (AWS S3 or MinIO via a custom
// endpoint). Credentials come from the default AWS chain.
func NewS3(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3PathStyle {
			o.UsePathStyle = true
		}
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})
	return &s3Store{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *s3Store) Save(ctx context.Context, r io.Reader, contentType string) (string, int64, error) {
	ref := uuid.Must(uuid.NewV4()).String()
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &ref, Body: r}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", 0, err
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &ref})
	if err != nil {
		return "", 0, err
	}
	var size int64
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	return ref, size, nil
}

func (s *s3Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &ref})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s *s3Store) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &ref})
	return err
}
