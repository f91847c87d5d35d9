package s3client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/config"
)

// maxPoolSize caps the per-host connection pool. The pool is sized from the
// concurrency limit so concurrent transfers never starve each other for
// connections.
const maxPoolSize = 100

// API is the subset of the S3 SDK surface this tool uses. It exists so that
// tests can substitute an in-memory implementation; it also satisfies
// manager.UploadAPIClient, so the transfer manager accepts it directly.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

var _ API = (*s3.Client)(nil)

// New builds an S3 client for one side of the sync. Each side carries its
// own credentials and may point at a different region or S3-compatible
// endpoint.
func New(ctx context.Context, side config.Side, concurrency int) (*s3.Client, error) {
	poolSize := concurrency
	if poolSize > maxPoolSize {
		poolSize = maxPoolSize
	}
	if poolSize < 1 {
		poolSize = 1
	}

	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		IdleConnTimeout:     90 * time.Second,
	}
	if side.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Transport: transport}),
	}
	if side.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(side.AccessKeyID, side.SecretAccessKey, ""),
		))
	}
	if side.Region != "" {
		opts = append(opts, awsconfig.WithRegion(side.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if side.Endpoint != "" {
			o.BaseEndpoint = aws.String(side.Endpoint)
			// Custom endpoints are S3-compatible stores where virtual-host
			// addressing usually doesn't resolve.
			o.UsePathStyle = true
		}
	})

	return client, nil
}
