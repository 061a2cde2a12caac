package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7/pkg/s3utils"
)

// S3Config holds the signed-policy material and addressing for uploads.
// Policy and Signature are produced by whoever owns the bucket credentials.
type S3Config struct {
	Bucket        string
	AccessKeyID   string
	ACL           string
	Policy        string
	PolicyFile    string
	Signature     string
	SignatureFile string
	Prefix        string
	CDN           string
	Redirect      string
	Protocol      string
	StorageHost   string
}

// VerifyConfig points at the endpoint used to read uploaded objects back anonymously.
type VerifyConfig struct {
	Endpoint string
	UseSSL   bool
	Region   string
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	S3               S3Config
	Verify           VerifyConfig
	Log              LogConfig
	MetricsAddr      string
	UploadTimeoutSec int
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	storageHost := getEnv("S3_STORAGE_HOST", "s3.amazonaws.com")
	return &AppConfig{
		S3: S3Config{
			Bucket:        getEnv("S3_BUCKET", ""),
			AccessKeyID:   getEnv("S3_ACCESS_KEY_ID", ""),
			ACL:           getEnv("S3_ACL", "public-read"),
			Policy:        getEnv("S3_POLICY", ""),
			PolicyFile:    getEnv("S3_POLICY_FILE", ""),
			Signature:     getEnv("S3_SIGNATURE", ""),
			SignatureFile: getEnv("S3_SIGNATURE_FILE", ""),
			Prefix:        getEnv("S3_PREFIX", "upload"),
			CDN:           getEnv("S3_CDN", ""),
			Redirect:      getEnv("S3_REDIRECT", ""),
			Protocol:      getEnv("S3_PROTOCOL", "https:"),
			StorageHost:   storageHost,
		},
		Verify: VerifyConfig{
			Endpoint: getEnv("S3_VERIFY_ENDPOINT", storageHost),
			UseSSL:   getEnvBool("S3_VERIFY_USE_SSL", true),
			Region:   getEnv("S3_VERIFY_REGION", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		MetricsAddr:      getEnv("METRICS_ADDR", ""),
		UploadTimeoutSec: getEnvInt("UPLOAD_TIMEOUT_SEC", 300),
	}
}

// ResolveSecrets fills Policy and Signature from their files when they are unset.
func (c *S3Config) ResolveSecrets() error {
	var err error
	if c.Policy == "" && c.PolicyFile != "" {
		if c.Policy, err = readTrimmed(c.PolicyFile); err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
	}
	if c.Signature == "" && c.SignatureFile != "" {
		if c.Signature, err = readTrimmed(c.SignatureFile); err != nil {
			return fmt.Errorf("read signature file: %w", err)
		}
	}
	return nil
}

// Validate checks what a form post cannot do without. The storage service
// still has the last word on policy and signature.
func (c *S3Config) Validate() error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	} else if err := s3utils.CheckValidBucketNameStrict(c.Bucket); err != nil {
		errs = append(errs, fmt.Errorf("S3_BUCKET: %w", err))
	}
	if c.Policy != "" && c.Signature == "" {
		errs = append(errs, errors.New("S3_SIGNATURE is required with S3_POLICY"))
	}
	if c.Policy != "" && c.AccessKeyID == "" {
		errs = append(errs, errors.New("S3_ACCESS_KEY_ID is required with S3_POLICY"))
	}
	return errors.Join(errs...)
}

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
