package bundler

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"omniversal/services/kernel"
)

const (
	manifestFileName   = "manifest.yaml"
	artifactsTarPrefix = "artifacts"
	stateTarPath       = "state/omniversal_state.json"

	kindArtifact = "artifact"
	kindState    = "state"
	kindFile     = "file"
)

// Export writes each delivered artifact as JSON under dir/<layer>/<id>.json
// and returns the written paths relative to dir.
func Export(dir string, artifacts []*kernel.Artifact) ([]string, error) {
	if dir == "" {
		return nil, errors.New("export directory is required")
	}
	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if a == nil {
			continue
		}
		rel := path.Join(string(a.LayerKind), a.ID+".json")
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("create layer dir: %w", err)
		}
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", a.ID, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}
		written = append(written, rel)
	}
	return written, nil
}

// Build assembles a signed tar.zst bundle from the exported artifacts
// directory and writes it to Output.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.ArtifactsDir == "" {
		return nil, errors.New("artifacts directory is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(cfg.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("stat artifacts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifacts dir %q is not a directory", cfg.ArtifactsDir)
	}

	entries, err := collectArtifacts(ctx, cfg.ArtifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no artifacts found to bundle")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	files := make(map[string]string, len(entries)+1)
	layers := make(map[string]int)
	for _, e := range entries {
		files[path.Join(artifactsTarPrefix, e.Path)] = filepath.Join(cfg.ArtifactsDir, filepath.FromSlash(e.Path))
		if e.Layer != "" {
			layers[e.Layer]++
		}
	}

	if cfg.StatePath != "" {
		state, err := hashFile(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("state file: %w", err)
		}
		state.Path = stateTarPath
		state.Kind = kindState
		entries = append(entries, state)
		files[stateTarPath] = cfg.StatePath
	}

	manifest := &Manifest{
		Version:          manifestVersion,
		RunID:            cfg.RunID,
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
		Layers:           layers,
		Artifacts:        entries,
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	sig, err := cfg.Signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifest.Signature = sig

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeBundle(cfg.Output, manifestBytes, manifest.CreatedAt, entries, files); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote bundle %s (%d files)\n", cfg.Output, len(entries))
	return manifest, nil
}

func collectArtifacts(ctx context.Context, root string) ([]ManifestArtifact, error) {
	var artifacts []ManifestArtifact
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		entry, err := hashFile(p)
		if err != nil {
			return err
		}
		entry.Path = rel
		entry.Kind, entry.Layer = classify(rel)
		artifacts = append(artifacts, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func hashFile(p string) (ManifestArtifact, error) {
	file, err := os.Open(p)
	if err != nil {
		return ManifestArtifact{}, fmt.Errorf("open %q: %w", p, err)
	}
	defer file.Close()
	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return ManifestArtifact{}, fmt.Errorf("hash %q: %w", p, err)
	}
	return ManifestArtifact{Size: size, SHA256: hex.EncodeToString(hash.Sum(nil))}, nil
}

// classify maps <layer>/<id>.json to an artifact of that layer. Anything else
// is bundled as a plain file.
func classify(rel string) (kind, layer string) {
	dir, file := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	if dir != "" && !strings.Contains(dir, "/") && strings.HasSuffix(strings.ToLower(file), ".json") {
		return kindArtifact, dir
	}
	return kindFile, ""
}

func writeBundle(output string, manifest []byte, modTime time.Time, entries []ManifestArtifact, files map[string]string) error {
	dir := filepath.Dir(output)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	tw := tar.NewWriter(encoder)
	if err := writeEntry(tw, manifestFileName, modTime, int64(len(manifest)), strings.NewReader(string(manifest))); err != nil {
		return err
	}

	for _, entry := range entries {
		name := tarName(entry)
		src, err := os.Open(files[name])
		if err != nil {
			return fmt.Errorf("open %q: %w", entry.Path, err)
		}
		err = writeEntry(tw, name, modTime, entry.Size, src)
		src.Close()
		if err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return file.Close()
}

func writeEntry(tw *tar.Writer, name string, modTime time.Time, size int64, r io.Reader) error {
	header := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     size,
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %q: %w", name, err)
	}
	if _, err := io.CopyN(tw, r, size); err != nil {
		return fmt.Errorf("copy %q: %w", name, err)
	}
	return nil
}

func tarName(entry ManifestArtifact) string {
	if entry.Kind == kindState {
		return entry.Path
	}
	return path.Join(artifactsTarPrefix, entry.Path)
}
