package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Client archives raw gateway callback payloads to an S3 bucket for audit.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates an archive client. Returns an error when the archive is
// disabled or misconfigured.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("payload archive is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // S3-compatible services expect path-style URLs
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	fiberlog.Infof("[Archive] initialized payload archive for bucket: %s", cfg.BucketName)
	return client, nil
}

// StorePayload writes a raw callback payload under a timestamped key.
func (c *Client) StorePayload(ctx context.Context, billID string, payload []byte) (string, error) {
	key := c.config.ObjectKey(billID, time.Now().UTC())

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"bill-id":       billID,
			"upload-source": "wms-appi1-callback",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive payload: %w", err)
	}

	fiberlog.Infof("[Archive] stored callback payload: s3://%s/%s", c.config.BucketName, key)
	return key, nil
}
