package upload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"waterlog/models"
)

// S3Store keeps uploads in an S3 bucket.
type S3Store struct {
	bucket   string
	svc      *s3.S3
	uploader *s3manager.Uploader
	now      func() time.Time
}

// NewS3Store creates a store for bucket. A non-empty endpoint selects an
// S3-compatible server with path-style addressing.
func NewS3Store(bucket, region, endpoint string, cfgs ...*aws.Config) (*S3Store, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(append([]*aws.Config{cfg}, cfgs...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	svc := s3.New(sess)
	return &S3Store{
		bucket:   bucket,
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		now:      time.Now,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.svc.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if aerr, ok := err.(awserr.Error); !ok ||
			(aerr.Code() != s3.ErrCodeBucketAlreadyExists && aerr.Code() != s3.ErrCodeBucketAlreadyOwnedByYou) {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *S3Store) Save(ctx context.Context, filename string, data []byte, contentType string) (*models.StoredFile, error) {
	key, err := objectName(s.now(), filename)
	if err != nil {
		return nil, err
	}
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	result, err := s.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return &models.StoredFile{Key: key, URL: result.Location}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	log.Infof("Deleted s3://%s/%s", s.bucket, key)
	return nil
}
