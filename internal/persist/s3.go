package persist

import (
	"context"
	"fmt"
	"os"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ParquetContentType is the media type set on uploaded tables.
const ParquetContentType = "application/vnd.apache.parquet"

// S3Config locates the bucket that mirrors the output directory.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // optional; S3-compatible endpoint such as MinIO
	PathStyle bool
}

// S3Mirror uploads finished table files to S3, keyed
// <prefix>/<output dir name>/<file name>.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Mirror creates a mirror from cfg. Credentials come from the default
// AWS chain (environment, shared config, instance role).
func NewS3Mirror(ctx context.Context, cfg S3Config) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3MirrorFromConfig(awsCfg, cfg), nil
}

// NewS3MirrorFromConfig creates a mirror over an already-loaded AWS config.
func NewS3MirrorFromConfig(awsCfg aws.Config, cfg S3Config, optFns ...func(*s3.Options)) *S3Mirror {
	client := s3.NewFromConfig(awsCfg, append([]func(*s3.Options){func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)...)
	return &S3Mirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// Key returns the object key of a table file in an output directory.
func (m *S3Mirror) Key(dirName, fileName string) string {
	return path.Join(m.prefix, dirName, fileName)
}

// Upload puts the file at localPath under key, overwriting any previous
// object. The file's SHA-256 is stored as object metadata.
func (m *S3Mirror) Upload(ctx context.Context, key, localPath, sha256 string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      &m.bucket,
		Key:         &key,
		Body:        f,
		ContentType: aws.String(ParquetContentType),
	}
	if sha256 != "" {
		input.Metadata = map[string]string{"sha256": sha256}
	}
	if _, err := m.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", m.bucket, key, err)
	}
	return nil
}
