package bundler

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest represents the signed metadata included in bundles.
type Manifest struct {
	Version          string             `yaml:"version"`
	RunID            string             `yaml:"run_id,omitempty"`
	CreatedAt        time.Time          `yaml:"created_at"`
	Signer           string             `yaml:"signer,omitempty"`
	SigningPublicKey string             `yaml:"signing_public_key,omitempty"`
	Signature        string             `yaml:"signature,omitempty"`
	Layers           map[string]int     `yaml:"layers,omitempty"`
	Artifacts        []ManifestArtifact `yaml:"artifacts"`
}

// SigningBytes marshals the manifest without its signature for signing/verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// ManifestArtifact describes a single file within the bundle.
type ManifestArtifact struct {
	Path   string `yaml:"path"`
	Kind   string `yaml:"kind"`
	Layer  string `yaml:"layer,omitempty"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}
