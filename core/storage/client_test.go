package storage_test

import (
	"testing"

	"merge-engine/core/storage"

	"github.com/stretchr/testify/assert"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.Config
	}{
		{"ValidConfig", storage.Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "b", Region: "us-east-1"}},
		{"EndpointWithHTTP", storage.Config{Endpoint: "http://localhost:9000", AccessKey: "k", SecretKey: "s"}},
		{"EndpointWithHTTPS", storage.Config{Endpoint: "https://s3.amazonaws.com", AccessKey: "k", SecretKey: "s", UseSSL: true, Region: "us-east-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := storage.NewClient(tt.cfg)
			assert.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}
