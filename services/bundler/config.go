package bundler

import (
	"context"
	"io"
	"time"
)

// BuildConfig configures bundle creation.
type BuildConfig struct {
	ArtifactsDir string
	// StatePath optionally adds the exported kernel state to the bundle.
	StatePath string
	RunID     string
	Output    string
	Signer    *Signer
	Now       func() time.Time
	Stdout    io.Writer
}

// VerifyConfig configures bundle verification.
type VerifyConfig struct {
	BundlePath string
	Signer     *Signer
	Stdout     io.Writer
}

// Uploader stores files in object storage. pkg/s3.Client satisfies it.
type Uploader interface {
	PutFile(ctx context.Context, key, path string) (string, error)
	Bucket() string
}

// PushConfig configures uploading a verified bundle.
type PushConfig struct {
	BundlePath string
	Prefix     string
	Uploader   Uploader
	Signer     *Signer
	Stdout     io.Writer
}
