package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"captioner/internal/config"
)

// Publisher uploads a finished render and returns where it landed.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// ObjectPutter is the slice of the S3 client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads renders to an S3 bucket.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// New returns the publisher selected by cfg, or nil when publishing is disabled.
func New(ctx context.Context, cfg *config.Config) (Publisher, error) {
	if cfg == nil || strings.TrimSpace(cfg.Publish.S3Bucket) == "" {
		return nil, nil
	}
	p := cfg.Publish
	var loadOpts []func(*awsconfig.LoadOptions) error
	if p.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(p.S3Region))
	}
	if p.S3Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(p.S3Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = p.S3PathStyle
	})
	return NewS3Publisher(client, p.S3Bucket, p.S3Prefix), nil
}

// NewS3Publisher wraps an existing client.
func NewS3Publisher(client ObjectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Publish implements Publisher.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	if p == nil || p.client == nil {
		return "", errors.New("publish: s3 client unavailable")
	}
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("publish: open render: %w", err)
	}
	defer file.Close()

	key := path.Join(p.prefix, filepath.Base(localPath))
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        io.Reader(file),
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("publish: put s3://%s/%s: %w", p.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
