// Package s3blob archives catalog snapshots, opportunities and fill exports
// to S3 or an S3-compatible store such as MinIO, R2 or iDrive e2.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig configures the archive bucket. Endpoint is empty for AWS.
// With no AccessKey the default AWS credential chain is used.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Client is an S3 client bound to one bucket.
type Client struct {
	api    *s3.Client
	bucket string
}

// New builds the SDK client. It does not contact the store; use Health.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var missing []string
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if cfg.Region == "" {
		missing = append(missing, "region")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("s3blob: access key and secret key must be set together")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("s3blob: missing %s", strings.Join(missing, ", "))
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
	})
	return &Client{api: api, bucket: cfg.Bucket}, nil
}

// Health checks that the bucket exists and the credentials can reach it.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// normaliseEndpoint prefixes a scheme-less endpoint with http or https.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/")
	}
	if useSSL {
		return "https://" + strings.TrimRight(endpoint, "/")
	}
	return "http://" + strings.TrimRight(endpoint, "/")
}
