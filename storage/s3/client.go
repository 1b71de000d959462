// Package s3 stores vehicle photos in an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/rtauto/dealer-admin/config"
)

// deleteBatchSize is the DeleteObjects limit per request.
const deleteBatchSize = 1000

// Client represents the S3 client wrapper
type Client struct {
	bucketName    string
	publicBaseURL string
	svc           s3iface.S3API
}

// NewClient creates a new S3 client instance
func NewClient(cfg config.StorageConfig) (*Client, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return NewClientWithAPI(s3.New(sess), cfg.Bucket, publicBase(cfg)), nil
}

// NewClientWithAPI wraps an existing S3 API implementation.
func NewClientWithAPI(svc s3iface.S3API, bucket, publicBaseURL string) *Client {
	return &Client{
		bucketName:    bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		svc:           svc,
	}
}

func publicBase(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// URL returns the public URL of objectKey.
func (c *Client) URL(objectKey string) string {
	return c.publicBaseURL + "/" + strings.TrimPrefix(objectKey, "/")
}

// Upload stores src under objectKey and returns its public URL.
func (c *Client) Upload(ctx context.Context, objectKey string, src io.ReadSeeker, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(objectKey),
		Body:   src,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.svc.PutObjectWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return c.URL(objectKey), nil
}

// DeleteObject removes a single object. Missing objects are not an error.
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := c.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectKey, err)
	}
	return nil
}

// DeleteObjects removes keys in batches and returns the keys S3 refused.
func (c *Client) DeleteObjects(ctx context.Context, keys []string) ([]string, error) {
	var failed []string
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := c.svc.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucketName),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return append(failed, keys[start:]...), fmt.Errorf("delete objects: %w", err)
		}
		for _, e := range out.Errors {
			failed = append(failed, aws.StringValue(e.Key))
		}
	}
	return failed, nil
}

// HeadBucket checks that the bucket is reachable.
func (c *Client) HeadBucket(ctx context.Context) error {
	_, err := c.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucketName)})
	return err
}
