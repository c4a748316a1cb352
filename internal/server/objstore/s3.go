package objstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mpetrovs/cloudvault/internal/common"
	sc "github.com/mpetrovs/cloudvault/internal/server/config"
)

// S3Store implements Store against an S3-compatible backend (AWS, MinIO).
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	timeout time.Duration
}

// NewS3Store builds the S3 client from static credentials and the configured
// base endpoint, matching an S3-compatible local deployment.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		ttl:     cfg.PresignTTL,
		timeout: cfg.ExternalTimeout,
	}, nil
}

// unavailable wraps an external failure with its retryable classification.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrUnavailable, op, err)
}

func (s *S3Store) CreateMultipart(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", unavailable("create multipart upload", err)
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", fmt.Errorf("%w: object store returned no multipart id", common.ErrInternal)
	}
	return *out.UploadId, nil
}

func (s *S3Store) CompleteMultipart(ctx context.Context, key, multipartID string, parts []CompletedPart) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.Number),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(multipartID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return unavailable("complete multipart upload", err)
	}
	return nil
}

func (s *S3Store) AbortMultipart(ctx context.Context, key, multipartID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(multipartID),
	})
	if err != nil {
		return unavailable("abort multipart upload", err)
	}
	return nil
}

func (s *S3Store) ListParts(ctx context.Context, key, multipartID string) ([]Part, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result []Part
	var marker *string

	for {
		out, err := s.client.ListParts(ctx, &s3.ListPartsInput{
			Bucket:           aws.String(s.bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(multipartID),
			PartNumberMarker: marker,
		})
		if err != nil {
			return nil, unavailable("list parts", err)
		}
		for _, p := range out.Parts {
			result = append(result, Part{
				Number: aws.ToInt32(p.PartNumber),
				Size:   aws.ToInt64(p.Size),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		marker = out.NextPartNumberMarker
	}

	return result, nil
}

func (s *S3Store) PresignUpload(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", unavailable("presign put", err)
	}
	return req.URL, nil
}

func (s *S3Store) PresignDownload(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", unavailable("presign get", err)
	}
	return req.URL, nil
}

func (s *S3Store) PresignUploadPart(ctx context.Context, key, multipartID string, partNumber int32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(multipartID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", unavailable("presign upload part", err)
	}
	return req.URL, nil
}

// GetObject streams an object's bytes. The per-call timeout is deliberately
// not applied here: the returned body is read long after the call returns and
// canceling the request context would sever it mid-stream.
func (s *S3Store) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, unavailable("get object", err)
	}
	return out.Body, nil
}
