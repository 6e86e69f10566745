// Package s3 provides an S3-backed dataset origin.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/datastash/datastash/pkg/origin"
)

// Config holds configuration for the S3 origin.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket" validate:"required"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible
	// services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// KeyPrefix is prepended to all dataset names (e.g. "datasets/").
	// Should end with "/" if non-empty.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// AccessKeyID and SecretAccessKey configure static credentials.
	// Leave empty to use the SDK's default credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// ForcePathStyle forces path-style addressing (required for
	// Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// Origin is an S3-backed implementation of origin.Origin.
type Origin struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New creates an S3 origin with an existing client.
func New(client *s3.Client, cfg Config) *Origin {
	return &Origin{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewFromConfig creates an S3 origin by building the client from config.
func NewFromConfig(ctx context.Context, cfg Config) (*Origin, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// fullKey returns the S3 key for a dataset name.
func (o *Origin) fullKey(name string) string {
	return o.keyPrefix + name
}

// Fetch downloads a dataset's payload and metadata.
func (o *Origin) Fetch(ctx context.Context, name string) ([]byte, origin.DatasetInfo, error) {
	resp, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.fullKey(name)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, origin.DatasetInfo{}, origin.ErrDatasetNotFound
		}
		return nil, origin.DatasetInfo{}, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, origin.DatasetInfo{}, fmt.Errorf("read s3 object body: %w", err)
	}

	info := origin.DatasetInfo{
		Name: name,
		Size: int64(len(data)),
		ETag: aws.ToString(resp.ETag),
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return data, info, nil
}

// List enumerates the datasets under the configured prefix.
func (o *Origin) List(ctx context.Context) ([]origin.DatasetInfo, error) {
	var datasets []origin.DatasetInfo

	paginator := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(o.keyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, o.keyPrefix)
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}

			info := origin.DatasetInfo{
				Name: name,
				Size: aws.ToInt64(obj.Size),
				ETag: aws.ToString(obj.ETag),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			datasets = append(datasets, info)
		}
	}

	return datasets, nil
}

// isNotFoundError checks if an error represents a missing S3 object.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

// Ensure Origin implements origin.Origin.
var _ origin.Origin = (*Origin)(nil)
