package s3

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Endpoint: "seaweed:8333"}, "https://seaweed:8333"},
		{Config{Endpoint: "seaweed:8333", DisableTLS: true}, "http://seaweed:8333"},
		{Config{Endpoint: "http://minio:9000", DisableTLS: false}, "http://minio:9000"},
	}
	for _, tt := range tests {
		if got := tt.cfg.endpointURL(); got != tt.want {
			t.Fatalf("endpointURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing endpoint", Config{}, "S3_ENDPOINT"},
		{"missing keys", Config{Endpoint: "s3:8333", Bucket: "b"}, "S3_ACCESS_KEY"},
		{"missing bucket", Config{Endpoint: "s3:8333", AccessKey: "a", SecretKey: "s"}, "S3_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("New() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestNewPresignsWithoutNetwork(t *testing.T) {
	c, err := New(context.Background(), Config{
		Endpoint:       "localhost:8333",
		AccessKey:      "access",
		SecretKey:      "secret",
		Bucket:         "omniversal",
		DisableTLS:     true,
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	url, err := c.PresignGet(context.Background(), "bundles/run.tar.zst", 5*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8333/omniversal/bundles/run.tar.zst?") {
		t.Fatalf("url = %q", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=300") {
		t.Fatalf("url missing expiry: %q", url)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.PresignGet(context.Background(), "k", time.Minute); !errors.Is(err, ErrNilClient) {
		t.Fatalf("PresignGet() error = %v", err)
	}
	if err := c.PutObject(context.Background(), "k", strings.NewReader(""), 0, "00"); !errors.Is(err, ErrNilClient) {
		t.Fatalf("PutObject() error = %v", err)
	}
	if c.Bucket() != "" {
		t.Fatal("nil client bucket not empty")
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	digest, size, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256() error = %v", err)
	}
	if size != 3 || digest != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("digest = %s size = %d", digest, size)
	}
}

func TestEncodeSHA256(t *testing.T) {
	if _, err := encodeSHA256(""); err == nil {
		t.Fatal("expected error for empty digest")
	}
	if _, err := encodeSHA256("zz"); err == nil {
		t.Fatal("expected error for non-hex digest")
	}
	got, err := encodeSHA256("00ff")
	if err != nil || got != "AP8=" {
		t.Fatalf("encodeSHA256(00ff) = %q, %v", got, err)
	}
}
