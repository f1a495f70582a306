package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"omniversal/pkg/bus"
	gos3 "omniversal/pkg/s3"
	"omniversal/pkg/telemetry"
	"omniversal/services/api"
	"omniversal/services/archive"
	"omniversal/services/bundler"
	"omniversal/services/dashboard"
	"omniversal/services/kernel"
	"omniversal/services/kernel/internal/config"
	"omniversal/services/layers"
)

func main() {
	if err := run(kernel.KernelName); err != nil {
		log.Fatal().Err(err).Msg("omniversal kernel")
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stdout)

	shutdownTelemetry, middleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	catalog := layers.DefaultCatalog()
	if cfg.LayerFile != "" {
		if catalog, err = layers.LoadCatalog(cfg.LayerFile); err != nil {
			return fmt.Errorf("load layer catalog: %w", err)
		}
	}
	configured, err := catalog.Build()
	if err != nil {
		return fmt.Errorf("build layers: %w", err)
	}
	deliverable, err := catalog.DeliverableKinds()
	if err != nil {
		return fmt.Errorf("deliverable kinds: %w", err)
	}

	opts := kernel.Options{
		Layers:           configured,
		DeliverableKinds: deliverable,
		ArtifactCount:    cfg.ArtifactCount,
		SyncDelay:        cfg.SyncDelay,
		HistoryLimit:     cfg.HistoryLimit,
		Logger:           &logger,
	}

	if cfg.NATSURL != "" {
		events, err := bus.New(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer events.Close()
		if err := events.EnsureStream(bus.DefaultStream); err != nil {
			return err
		}
		opts.Publisher = events
	}

	var runs *archive.Archive
	if cfg.DBDSN != "" {
		a, pool, err := archive.Open(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer pool.Close()
		runs = a
		opts.Recorder = a
	}

	var store *gos3.Client
	if cfg.S3.Enabled() {
		if store, err = gos3.New(ctx, cfg.S3); err != nil {
			return fmt.Errorf("init s3 client: %w", err)
		}
	}

	k, err := kernel.New(opts)
	if err != nil {
		return fmt.Errorf("create kernel: %w", err)
	}

	report, runErr := k.Run(ctx)
	if err := k.ExportState(ctx, cfg.StatePath); err != nil {
		logger.Error().Err(err).Msg("export state")
	}
	if runErr != nil {
		return fmt.Errorf("kernel run: %w", runErr)
	}
	logger.Info().
		Str("status", report.Status).
		Int("deployed_layers", report.Deployment.DeployedLayers).
		Int("artifacts_delivered", report.Artifacts.Delivered).
		Int("operations_completed", report.Operations.OperationsCompleted).
		Msg("run complete")

	if err := publishArtifacts(ctx, cfg, k, store, logger); err != nil {
		return err
	}

	if !cfg.Serve {
		return nil
	}
	return serve(ctx, cfg, k, runs, store, middleware, logger)
}

// publishArtifacts exports delivered artifacts and, when configured, bundles
// and uploads them.
func publishArtifacts(ctx context.Context, cfg config.Config, k *kernel.Kernel, store *gos3.Client, logger zerolog.Logger) error {
	if cfg.ArtifactsDir == "" {
		return nil
	}
	written, err := bundler.Export(cfg.ArtifactsDir, k.Delivery().Delivered())
	if err != nil {
		return fmt.Errorf("export artifacts: %w", err)
	}
	logger.Info().Int("files", len(written)).Str("dir", cfg.ArtifactsDir).Msg("artifacts exported")

	if cfg.BundleOutput == "" {
		return nil
	}
	signer, err := bundler.NewSigner(cfg.Signer)
	if err != nil {
		return fmt.Errorf("bundle signer: %w", err)
	}
	if _, err := bundler.Build(ctx, bundler.BuildConfig{
		ArtifactsDir: cfg.ArtifactsDir,
		StatePath:    cfg.StatePath,
		RunID:        k.RunID().String(),
		Output:       cfg.BundleOutput,
		Signer:       signer,
	}); err != nil {
		return fmt.Errorf("build bundle: %w", err)
	}
	logger.Info().Str("bundle", cfg.BundleOutput).Msg("bundle built")

	if store == nil {
		return nil
	}
	key, err := bundler.Push(ctx, bundler.PushConfig{
		BundlePath: cfg.BundleOutput,
		Prefix:     cfg.BundlePrefix,
		Uploader:   store,
		Signer:     signer,
	})
	if err != nil {
		return fmt.Errorf("push bundle: %w", err)
	}
	logger.Info().Str("bucket", store.Bucket()).Str("key", key).Msg("bundle uploaded")
	return nil
}

func serve(ctx context.Context, cfg config.Config, k *kernel.Kernel, runs *archive.Archive, store *gos3.Client, middleware func(http.Handler) http.Handler, logger zerolog.Logger) error {
	renderer, err := dashboard.NewRenderer(time.Now)
	if err != nil {
		return fmt.Errorf("dashboard renderer: %w", err)
	}
	apiOpts := []api.Option{api.WithRenderer(renderer), api.WithLogger(logger)}
	if runs != nil {
		apiOpts = append(apiOpts, api.WithArchive(runs))
	}
	if store != nil {
		apiOpts = append(apiOpts, api.WithPresigner(store))
	}

	a, err := api.New(k, api.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		Middleware:     middleware,
	}, apiOpts...)
	if err != nil {
		return fmt.Errorf("create api: %w", err)
	}
	handler, err := a.Routes()
	if err != nil {
		return fmt.Errorf("api routes: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("serving status api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
