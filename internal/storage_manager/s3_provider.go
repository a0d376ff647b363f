package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client the provider calls.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3FileProvider stores each blob as one object under an optional key prefix.
type S3FileProvider struct {
	bucket string
	prefix string
	api    S3API
}

// NewS3FileProvider creates a provider over bucket. Leading and trailing
// slashes in prefix are ignored.
func NewS3FileProvider(bucket, prefix string, api S3API) *S3FileProvider {
	return &S3FileProvider{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		api:    api,
	}
}

// LoadS3Client builds an SDK client from the default credential chain,
// optionally pinned to a shared-config profile and region.
func LoadS3Client(ctx context.Context, region, profile string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (p *S3FileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	key := p.key(path)
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", p.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", p.bucket, key, err)
	}
	return data, nil
}

// Write uploads data with a JSON content type since every blob the stores
// write is a JSON document.
func (p *S3FileProvider) Write(ctx context.Context, path string, data []byte) error {
	key := p.key(path)
	_, err := p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", p.bucket, key, err)
	}
	return nil
}

// Exists returns (false, nil) only when S3 reports the key missing.
func (p *S3FileProvider) Exists(ctx context.Context, path string) (bool, error) {
	key := p.key(path)
	_, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to head s3://%s/%s: %w", p.bucket, key, err)
	}
}

func (p *S3FileProvider) Delete(ctx context.Context, path string) error {
	key := p.key(path)
	if _, err := p.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", p.bucket, key, err)
	}
	return nil
}

// List returns paths relative to the provider prefix. A bucket that has never
// been written lists empty.
func (p *S3FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	root := p.key("")
	paginator := s3.NewListObjectsV2Paginator(p.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.key(prefix)),
	})

	paths := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var noBucket *types.NoSuchBucket
			if errors.As(err, &noBucket) || isNotFound(err) {
				return []string{}, nil
			}
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", p.bucket, p.key(prefix), err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if rel, ok := strings.CutPrefix(*obj.Key, root); ok && rel != "" {
				paths = append(paths, rel)
			}
		}
	}
	return paths, nil
}

// Ping checks the bucket is reachable with the configured credentials.
func (p *S3FileProvider) Ping(ctx context.Context) error {
	if _, err := p.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", p.bucket, err)
	}
	return nil
}

func (p *S3FileProvider) key(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var missing *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &missing) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
