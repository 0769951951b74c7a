// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/ensure-buckets/pkg/logger"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/go-cleanhttp"
)

// S3EndpointPath is where the platform serves its S3-compatible API.
const S3EndpointPath = "/storage/v1/s3"

const defaultS3Region = "us-east-1"

func init() {
	Register(types.StorageTypeS3, NewS3)
}

// S3 implements BucketStore for the S3-compatible endpoint. S3 has no notion
// of the platform's public flag on listing, so listed buckets report false.
type S3 struct {
	client     *s3.Client
	httpClient *http.Client
	ownsClient bool
}

// NewS3 creates an S3 backend
func NewS3(cfg types.BackendConfig) (types.BucketStore, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.URL == "" {
			return nil, fmt.Errorf("url or endpoint required for S3 backend")
		}
		endpoint = strings.TrimSuffix(cfg.URL, "/") + S3EndpointPath
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("access key and secret key required for S3 backend")
	}

	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	httpClient := cfg.HTTPClient
	ownsClient := httpClient == nil
	if ownsClient {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.HTTPClient = httpClient
		o.UsePathStyle = true
	})

	return &S3{client: client, httpClient: httpClient, ownsClient: ownsClient}, nil
}

func (s *S3) Type() types.StorageType {
	return types.StorageTypeS3
}

func (s *S3) ListBuckets(ctx context.Context) ([]types.Bucket, error) {
	buckets := []types.Bucket{}

	p := s3.NewListBucketsPaginator(s.client, &s3.ListBucketsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s3Error("list buckets", err)
		}
		for _, b := range page.Buckets {
			bucket := types.Bucket{Name: aws.ToString(b.Name)}
			if b.CreationDate != nil {
				bucket.CreatedAt = b.CreationDate.UTC().Format(time.RFC3339)
			}
			buckets = append(buckets, bucket)
		}
	}

	return buckets, nil
}

func (s *S3) CreateBucket(ctx context.Context, bucket types.Bucket) (*types.Bucket, error) {
	if strings.TrimSpace(bucket.Name) == "" {
		return nil, ErrEmptyBucketName
	}
	if bucket.FileSizeLimit > 0 || len(bucket.AllowedMimeTypes) > 0 {
		logger.Warn().
			Str("bucket", bucket.Name).
			Msg("S3 backend ignores file_size_limit and allowed_mime_types")
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket.Name),
	}
	if bucket.Public {
		input.ACL = s3types.BucketCannedACLPublicRead
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return nil, s3Error("create bucket "+bucket.Name, err)
	}

	return &types.Bucket{Name: bucket.Name, Public: bucket.Public}, nil
}

func (s *S3) Close() error {
	if s.ownsClient {
		s.httpClient.CloseIdleConnections()
	}
	return nil
}

// s3Error maps SDK failures onto APIError so callers see one error shape.
func s3Error(op string, err error) error {
	apiErr := &APIError{Op: op, Err: err}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		apiErr.StatusCode = respErr.HTTPStatusCode()
	}

	var smithyErr smithy.APIError
	if errors.As(err, &smithyErr) {
		apiErr.Body = map[string]any{
			"error":   smithyErr.ErrorCode(),
			"message": smithyErr.ErrorMessage(),
		}
	}

	return apiErr
}
