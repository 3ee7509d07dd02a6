package s3blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "http://minio.local:9000", normaliseEndpoint("minio.local:9000/", false))
	assert.Equal(t, "http://already", normaliseEndpoint("http://already", true))
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"no bucket or region", ClientConfig{}, "missing bucket, region"},
		{"half credentials", ClientConfig{Bucket: "b", Region: "us-east-1", AccessKey: "ak"}, "set together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(t.Context(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	c, err := New(t.Context(), ClientConfig{
		Endpoint: "minio.local:9000", Region: "us-east-1", Bucket: "polyarb-archive",
		AccessKey: "ak", SecretKey: "sk", ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "polyarb-archive", c.bucket)
	assert.True(t, c.api.Options().UsePathStyle)
	assert.Equal(t, "http://minio.local:9000", *c.api.Options().BaseEndpoint)
}
