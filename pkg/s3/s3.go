package s3

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

var ErrNotConfigured = errors.New("s3 bucket is not configured")

type ItfS3 interface {
	// UploadJSON stores body under key and returns the object location.
	UploadJSON(ctx context.Context, key string, body []byte) (string, error)
}

type s3Client struct {
	uploader   *s3manager.Uploader
	bucketName string
}

func New() (ItfS3, error) {
	bucketName := os.Getenv("AWS_BUCKET_NAME")
	if bucketName == "" {
		return nil, ErrNotConfigured
	}

	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	return &s3Client{
		uploader:   s3manager.NewUploader(sess),
		bucketName: bucketName,
	}, nil
}

func (s *s3Client) UploadJSON(ctx context.Context, key string, body []byte) (string, error) {
	uploadOutput, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}

	return uploadOutput.Location, nil
}

func newSession() (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
		Credentials: credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		),
	})

	if err != nil {
		return nil, err
	}

	return sess, nil
}
