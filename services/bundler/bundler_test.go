package bundler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"omniversal/services/kernel"
	"omniversal/services/layers"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	secret, err := GenerateSecretKey()
	if err != nil {
		t.Fatalf("GenerateSecretKey() error = %v", err)
	}
	signer, err := NewSigner(SignerConfig{SecretKey: secret})
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return signer
}

func exportFixture(t *testing.T, dir string) []string {
	t.Helper()
	kinds := []layers.Kind{layers.KindZakat, layers.KindAIML}
	artifacts, err := kernel.GenerateArtifacts(1, 3, kinds, fixedNow)
	if err != nil {
		t.Fatalf("GenerateArtifacts() error = %v", err)
	}
	written, err := Export(dir, artifacts)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	return written
}

func TestExportWritesLayerDirectories(t *testing.T) {
	dir := t.TempDir()
	written := exportFixture(t, dir)

	want := []string{
		"zakat_automation/ARTIFACT-00000001.json",
		"tatras_ai_ml/ARTIFACT-00000002.json",
		"zakat_automation/ARTIFACT-00000003.json",
	}
	if !reflect.DeepEqual(written, want) {
		t.Fatalf("written = %v, want %v", written, want)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tatras_ai_ml", "ARTIFACT-00000002.json"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Contains(data, []byte(`"payload_2"`)) {
		t.Fatalf("artifact content = %s", data)
	}
}

func TestBuildAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "artifacts")
	exportFixture(t, artifactsDir)

	statePath := filepath.Join(dir, "omniversal_state.json")
	if err := os.WriteFile(statePath, []byte(`{"status":"operational"}`), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}

	signer := newTestSigner(t)
	output := filepath.Join(dir, "out", "bundle.tar.zst")
	var stdout bytes.Buffer

	manifest, err := Build(context.Background(), BuildConfig{
		ArtifactsDir: artifactsDir,
		StatePath:    statePath,
		RunID:        "run-1",
		Output:       output,
		Signer:       signer,
		Now:          fixedNow,
		Stdout:       &stdout,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(manifest.Artifacts) != 4 {
		t.Fatalf("manifest artifacts = %d, want 4", len(manifest.Artifacts))
	}
	wantLayers := map[string]int{"zakat_automation": 2, "tatras_ai_ml": 1}
	if !reflect.DeepEqual(manifest.Layers, wantLayers) {
		t.Fatalf("layers = %v, want %v", manifest.Layers, wantLayers)
	}
	if !strings.Contains(stdout.String(), "wrote bundle") {
		t.Fatalf("stdout = %q", stdout.String())
	}

	verified, err := Verify(context.Background(), VerifyConfig{BundlePath: output, Signer: signer})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verified.RunID != "run-1" {
		t.Fatalf("run id = %q", verified.RunID)
	}
	if !reflect.DeepEqual(verified.Artifacts, manifest.Artifacts) {
		t.Fatalf("verified artifacts differ:\n got %v\nwant %v", verified.Artifacts, manifest.Artifacts)
	}
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "artifacts")
	exportFixture(t, artifactsDir)
	output := filepath.Join(dir, "bundle.tar.zst")

	if _, err := Build(context.Background(), BuildConfig{
		ArtifactsDir: artifactsDir,
		Output:       output,
		Signer:       newTestSigner(t),
		Now:          fixedNow,
	}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := Verify(context.Background(), VerifyConfig{BundlePath: output, Signer: newTestSigner(t)}); err == nil {
		t.Fatal("expected verification failure with another key")
	}
}

func TestVerifyDetectsTamperedBundle(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "artifacts")
	exportFixture(t, artifactsDir)
	signer := newTestSigner(t)

	artifactPath := filepath.Join(artifactsDir, "zakat_automation", "ARTIFACT-00000001.json")
	entry, err := hashFile(artifactPath)
	if err != nil {
		t.Fatalf("hashFile() error = %v", err)
	}

	// Correct size and signature but a digest that does not match the file.
	manifest := &Manifest{
		Version:          manifestVersion,
		CreatedAt:        fixedNow(),
		SigningPublicKey: signer.PublicKeyBase64(),
		Artifacts: []ManifestArtifact{{
			Path:   "zakat_automation/ARTIFACT-00000001.json",
			Kind:   kindArtifact,
			Layer:  "zakat_automation",
			Size:   entry.Size,
			SHA256: strings.Repeat("0", 64),
		}},
	}
	payload, err := manifest.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes() error = %v", err)
	}
	if manifest.Signature, err = signer.Sign(payload); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}

	output := filepath.Join(dir, "tampered.tar.zst")
	files := map[string]string{"artifacts/zakat_automation/ARTIFACT-00000001.json": artifactPath}
	if err := writeBundle(output, manifestBytes, fixedNow(), manifest.Artifacts, files); err != nil {
		t.Fatalf("writeBundle() error = %v", err)
	}

	_, err = Verify(context.Background(), VerifyConfig{BundlePath: output, Signer: signer})
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("Verify() error = %v, want ErrTampered", err)
	}
}

func TestBuildRequiresArtifacts(t *testing.T) {
	_, err := Build(context.Background(), BuildConfig{
		ArtifactsDir: t.TempDir(),
		Output:       filepath.Join(t.TempDir(), "b.tar.zst"),
		Signer:       newTestSigner(t),
	})
	if err == nil {
		t.Fatal("expected error for empty artifacts directory")
	}
}

type fakeUploader struct {
	key  string
	path string
}

func (f *fakeUploader) PutFile(_ context.Context, key, path string) (string, error) {
	f.key = key
	f.path = path
	return "deadbeef", nil
}

func (f *fakeUploader) Bucket() string { return "omniversal" }

func TestPushUploadsUnderRunPrefix(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "artifacts")
	exportFixture(t, artifactsDir)
	signer := newTestSigner(t)
	output := filepath.Join(dir, "bundle.tar.zst")

	if _, err := Build(context.Background(), BuildConfig{
		ArtifactsDir: artifactsDir,
		RunID:        "run-7",
		Output:       output,
		Signer:       signer,
		Now:          fixedNow,
	}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	up := &fakeUploader{}
	var stdout bytes.Buffer
	key, err := Push(context.Background(), PushConfig{
		BundlePath: output,
		Prefix:     "/bundles/",
		Uploader:   up,
		Signer:     signer,
		Stdout:     &stdout,
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if key != "bundles/run-7/bundle.tar.zst" || up.key != key {
		t.Fatalf("key = %q, uploaded key = %q", key, up.key)
	}
	if up.path != output {
		t.Fatalf("uploaded path = %q", up.path)
	}
	if !strings.Contains(stdout.String(), "s3://omniversal/bundles/run-7/bundle.tar.zst") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rel       string
		wantKind  string
		wantLayer string
	}{
		{"zakat_automation/ARTIFACT-00000001.json", kindArtifact, "zakat_automation"},
		{"README.md", kindFile, ""},
		{"a/b/c.json", kindFile, ""},
		{"crm_analytics/notes.txt", kindFile, ""},
	}
	for _, tt := range tests {
		kind, layer := classify(tt.rel)
		if kind != tt.wantKind || layer != tt.wantLayer {
			t.Fatalf("classify(%q) = %q/%q, want %q/%q", tt.rel, kind, layer, tt.wantKind, tt.wantLayer)
		}
	}
}
