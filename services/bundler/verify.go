package bundler

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// ErrTampered reports a bundle whose contents do not match its manifest.
var ErrTampered = errors.New("bundle contents do not match manifest")

type fileDigest struct {
	size   int64
	sha256 string
}

// Verify opens a bundle, checks the manifest signature and confirms every
// listed file has the recorded size and digest.
func Verify(ctx context.Context, cfg VerifyConfig) (*Manifest, error) {
	if cfg.BundlePath == "" {
		return nil, errors.New("bundle path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	manifest, digests, err := readBundle(ctx, cfg.BundlePath)
	if err != nil {
		return nil, err
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	if err := cfg.Signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest: %w", err)
	}

	for _, entry := range manifest.Artifacts {
		name := tarName(entry)
		got, ok := digests[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing", ErrTampered, name)
		}
		if got.size != entry.Size {
			return nil, fmt.Errorf("%w: %s size %d, manifest %d", ErrTampered, name, got.size, entry.Size)
		}
		if got.sha256 != entry.SHA256 {
			return nil, fmt.Errorf("%w: %s digest mismatch", ErrTampered, name)
		}
		delete(digests, name)
	}
	for name := range digests {
		return nil, fmt.Errorf("%w: unexpected file %s", ErrTampered, name)
	}

	fmt.Fprintf(cfg.Stdout, "bundle %s verified (%d files)\n", cfg.BundlePath, len(manifest.Artifacts))
	return manifest, nil
}

func readBundle(ctx context.Context, bundlePath string) (*Manifest, map[string]fileDigest, error) {
	file, err := os.Open(bundlePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open bundle: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var (
		manifest *Manifest
		digests  = make(map[string]fileDigest)
		tr       = tar.NewReader(decoder)
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read bundle: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name, err := cleanEntryName(header.Name)
		if err != nil {
			return nil, nil, err
		}

		if name == manifestFileName {
			var m Manifest
			if err := yaml.NewDecoder(tr).Decode(&m); err != nil {
				return nil, nil, fmt.Errorf("decode manifest: %w", err)
			}
			manifest = &m
			continue
		}

		hash := sha256.New()
		size, err := io.Copy(hash, tr)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
		digests[name] = fileDigest{size: size, sha256: hex.EncodeToString(hash.Sum(nil))}
	}

	if manifest == nil {
		return nil, nil, errors.New("bundle has no manifest")
	}
	return manifest, digests, nil
}

func cleanEntryName(name string) (string, error) {
	cleaned := path.Clean(name)
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid bundle entry %q", name)
	}
	return cleaned, nil
}

// Push verifies a bundle and uploads it under <prefix>/<run id>/<file name>.
// It returns the object key.
func Push(ctx context.Context, cfg PushConfig) (string, error) {
	if cfg.Uploader == nil {
		return "", errors.New("uploader is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	manifest, err := Verify(ctx, VerifyConfig{BundlePath: cfg.BundlePath, Signer: cfg.Signer})
	if err != nil {
		return "", err
	}

	runID := manifest.RunID
	if runID == "" {
		runID = "unassigned"
	}
	key := path.Join(strings.Trim(cfg.Prefix, "/"), runID, filepath.Base(cfg.BundlePath))

	digest, err := cfg.Uploader.PutFile(ctx, key, cfg.BundlePath)
	if err != nil {
		return "", fmt.Errorf("upload bundle: %w", err)
	}
	fmt.Fprintf(cfg.Stdout, "uploaded s3://%s/%s sha256=%s\n", cfg.Uploader.Bucket(), key, digest)
	return key, nil
}
