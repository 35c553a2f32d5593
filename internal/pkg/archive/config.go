package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/Bosco9119/wms-appi1/internal/pkg/env"
	"github.com/google/uuid"
)

// Config holds callback payload archive configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("ARCHIVE_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("ARCHIVE_REGION", "us-east-1"),
		BucketName:      env.GetEnv("ARCHIVE_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("ARCHIVE_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("ARCHIVE_ACCESS_KEY_ID is required when the payload archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("ARCHIVE_SECRET_ACCESS_KEY is required when the payload archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("ARCHIVE_BUCKET_NAME is required when the payload archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the payload archive is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates the archive object key for a callback payload.
// Format: callbacks/YYYY/MM/<billID>-<uuid>.json
func (c *Config) ObjectKey(billID string, at time.Time) string {
	return fmt.Sprintf("callbacks/%04d/%02d/%s-%s.json", at.Year(), int(at.Month()), billID, uuid.NewString())
}
