package config

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-envconfig"

	gos3 "omniversal/pkg/s3"
	"omniversal/services/bundler"
)

// Config holds runtime configuration for the kernel service.
type Config struct {
	StatePath     string        `env:"KERNEL_STATE_PATH,default=omniversal_state.json"`
	ArtifactCount int           `env:"KERNEL_ARTIFACT_COUNT,default=20"`
	SyncDelay     time.Duration `env:"KERNEL_SYNC_DELAY,default=100ms"`
	HistoryLimit  int           `env:"KERNEL_HISTORY_LIMIT,default=256"`
	LayerFile     string        `env:"KERNEL_LAYER_FILE"`

	// ArtifactsDir receives delivered artifacts as JSON after a run.
	ArtifactsDir string `env:"KERNEL_ARTIFACTS_DIR"`
	// BundleOutput, when set, packs ArtifactsDir and the state file into a
	// signed bundle. Requires ArtifactsDir and AGE_SECRET_KEY.
	BundleOutput string `env:"KERNEL_BUNDLE_OUTPUT"`
	BundlePrefix string `env:"KERNEL_BUNDLE_PREFIX,default=bundles"`

	// Serve keeps the process alive serving the status API after the run.
	Serve          bool     `env:"KERNEL_SERVE,default=false"`
	Addr           string   `env:"ADDR,default=:8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimit      int      `env:"API_RATE_LIMIT,default=100"`

	NATSURL      string `env:"NATS_URL"`
	DBDSN        string `env:"DB_DSN"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	S3     gos3.Config
	Signer bundler.SignerConfig
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option combinations envconfig cannot express.
func (c Config) Validate() error {
	if c.StatePath == "" {
		return errors.New("KERNEL_STATE_PATH must not be empty")
	}
	if c.ArtifactCount <= 0 {
		return errors.New("KERNEL_ARTIFACT_COUNT must be positive")
	}
	if c.BundleOutput != "" {
		if c.ArtifactsDir == "" {
			return errors.New("KERNEL_BUNDLE_OUTPUT requires KERNEL_ARTIFACTS_DIR")
		}
		if c.Signer.SecretKey == "" {
			return errors.New("KERNEL_BUNDLE_OUTPUT requires AGE_SECRET_KEY")
		}
	}
	return nil
}
