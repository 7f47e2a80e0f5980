// Package storage wraps the S3 operations the console exposes: object IO
// plus the fixed bucket-provisioning sequence used for evaluation artifacts.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// API is the subset of the S3 client the service uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketCors(ctx context.Context, params *s3.PutBucketCorsInput, optFns ...func(*s3.Options)) (*s3.PutBucketCorsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

type Service struct {
	client API
	logger zerolog.Logger
}

func NewService(client API, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger.With().Str("component", "storage").Logger()}
}

// Upload writes body under key with the given content type.
func (s *Service) Upload(ctx context.Context, bucket, key, contentType string, body []byte) error {
	input := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("PutObject(%s/%s): %w", bucket, key, err)
	}
	s.logger.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(body)).Msg("uploaded object")
	return nil
}

// BucketExists reports whether the bucket is reachable with the caller's
// credentials. A 404 from HeadBucket means no; any other failure is an error.
func (s *Service) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("HeadBucket(%s): %w", bucket, err)
	}
	return true, nil
}

// CreateBucket creates the bucket in region. us-east-1 must not carry a
// location constraint.
func (s *Service) CreateBucket(ctx context.Context, bucket, region string) error {
	input := &s3.CreateBucketInput{Bucket: &bucket}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("CreateBucket(%s): %w", bucket, err)
	}
	s.logger.Info().Str("bucket", bucket).Str("region", region).Msg("created bucket")
	return nil
}

// SetCORS installs a rule allowing the given origin to GET/PUT/POST objects.
func (s *Service) SetCORS(ctx context.Context, bucket, origin string) error {
	if origin == "" {
		origin = "*"
	}
	_, err := s.client.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket: &bucket,
		CORSConfiguration: &types.CORSConfiguration{
			CORSRules: []types.CORSRule{{
				AllowedOrigins: []string{origin},
				AllowedMethods: []string{"GET", "PUT", "POST", "HEAD"},
				AllowedHeaders: []string{"*"},
				MaxAgeSeconds:  aws.Int32(3000),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("PutBucketCors(%s): %w", bucket, err)
	}
	return nil
}

// EnsureBucket makes the bucket usable by the SPA: create it if absent, then
// apply the CORS rule. The CORS step runs even for pre-existing buckets so a
// stale configuration gets repaired.
func (s *Service) EnsureBucket(ctx context.Context, bucket, region, origin string) (bool, error) {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return false, err
	}
	if !exists {
		if err := s.CreateBucket(ctx, bucket, region); err != nil {
			return false, err
		}
	}
	if err := s.SetCORS(ctx, bucket, origin); err != nil {
		return !exists, err
	}
	return !exists, nil
}

type Object struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified,omitempty"`
	StorageClass string `json:"storageClass,omitempty"`
}

// ListObjects drains every page under prefix.
func (s *Service) ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	var token *string
	for {
		input := &s3.ListObjectsV2Input{Bucket: &bucket, ContinuationToken: token}
		if prefix != "" {
			input.Prefix = &prefix
		}
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("ListObjectsV2(%s): %w", bucket, err)
		}
		for _, o := range out.Contents {
			obj := Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				StorageClass: string(o.StorageClass),
			}
			if o.LastModified != nil {
				obj.LastModified = o.LastModified.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			objects = append(objects, obj)
		}
		if out.NextContinuationToken == nil {
			return objects, nil
		}
		token = out.NextContinuationToken
	}
}

// GetObject returns the object body and its content type.
func (s *Service) GetObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, "", fmt.Errorf("GetObject(%s/%s): %w", bucket, key, err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading object body: %w", err)
	}
	return body, aws.ToString(out.ContentType), nil
}

// GetObjectJSON fetches the object and decodes it as a JSON document.
func (s *Service) GetObjectJSON(ctx context.Context, bucket, key string) (map[string]any, error) {
	body, _, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s/%s as JSON: %w", bucket, key, err)
	}
	return doc, nil
}
