package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_PREFIX", "avatars")
	t.Setenv("S3_VERIFY_USE_SSL", "false")
	t.Setenv("UPLOAD_TIMEOUT_SEC", "20")
	t.Setenv("S3_ACL", "")

	cfg := Load()

	assert.Equal(t, "my-bucket", cfg.S3.Bucket)
	assert.Equal(t, "avatars", cfg.S3.Prefix)
	assert.Equal(t, "public-read", cfg.S3.ACL)
	assert.Equal(t, "s3.amazonaws.com", cfg.S3.StorageHost)
	assert.False(t, cfg.Verify.UseSSL)
	assert.Equal(t, 20, cfg.UploadTimeoutSec)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "s3.amazonaws.com", cfg.Verify.Endpoint)
}

func TestLoad_VerifyEndpointFollowsStorageHost(t *testing.T) {
	t.Setenv("S3_STORAGE_HOST", "minio.internal:9000")

	cfg := Load()
	assert.Equal(t, "minio.internal:9000", cfg.S3.StorageHost)
	assert.Equal(t, "minio.internal:9000", cfg.Verify.Endpoint)

	t.Setenv("S3_VERIFY_ENDPOINT", "files.example.com")
	assert.Equal(t, "files.example.com", Load().Verify.Endpoint)
}

func TestResolveSecrets(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy")
	sig := filepath.Join(dir, "signature")
	require.NoError(t, os.WriteFile(policy, []byte("eyJwb2xpY3kiOiB0cnVlfQ==\n"), 0o600))
	require.NoError(t, os.WriteFile(sig, []byte("c2ln\n"), 0o600))

	c := S3Config{PolicyFile: policy, SignatureFile: sig}
	require.NoError(t, c.ResolveSecrets())
	assert.Equal(t, "eyJwb2xpY3kiOiB0cnVlfQ==", c.Policy)
	assert.Equal(t, "c2ln", c.Signature)

	// Values already set win over files.
	c = S3Config{Policy: "inline", PolicyFile: policy}
	require.NoError(t, c.ResolveSecrets())
	assert.Equal(t, "inline", c.Policy)

	c = S3Config{PolicyFile: filepath.Join(dir, "missing")}
	assert.Error(t, c.ResolveSecrets())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr string
	}{
		{"ok", S3Config{Bucket: "my-bucket", AccessKeyID: "AK", Policy: "P", Signature: "S"}, ""},
		{"anonymous bucket", S3Config{Bucket: "my-bucket"}, ""},
		{"missing bucket", S3Config{}, "S3_BUCKET is required"},
		{"bad bucket", S3Config{Bucket: "My_Bucket"}, "S3_BUCKET"},
		{"policy without signature", S3Config{Bucket: "b-1", AccessKeyID: "AK", Policy: "P"}, "S3_SIGNATURE"},
		{"policy without key", S3Config{Bucket: "b-1", Policy: "P", Signature: "S"}, "S3_ACCESS_KEY_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}
