package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"omniversal/pkg/telemetry"
	"omniversal/services/layers"
)

// Phase is the position of the kernel in its run sequence. Each phase names
// the step that last completed.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseInitializing      Phase = "initializing"
	PhaseDeploying         Phase = "deploying"
	PhaseSyncing           Phase = "syncing"
	PhaseDelivering        Phase = "delivering"
	PhaseRunningOperations Phase = "running_operations"
	PhaseSnapshotReady     Phase = "snapshot_ready"
	PhaseFailed            Phase = "failed"
)

// Options configures a Kernel. Zero values select the defaults.
type Options struct {
	// Layers are the configured variants in declaration order. Empty means
	// every built-in kind.
	Layers []layers.Layer
	// DeliverableKinds receive generated artifacts round robin. Empty means
	// layers.DefaultDeliverableKinds.
	DeliverableKinds []layers.Kind
	// Requests overrides the sample request sent to a layer during the
	// operations phase.
	Requests map[layers.Kind]layers.Request

	ArtifactCount int
	// SyncDelay is the pause between syncing and active. Negative disables it.
	SyncDelay time.Duration
	// HistoryLimit bounds snapshot and artifact history. Negative keeps all.
	HistoryLimit int

	Logger    *zerolog.Logger
	Publisher Publisher
	Recorder  Recorder
	Now       func() time.Time
}

// Kernel sequences the mission layers through initialize, deploy, sync,
// deliver, run operations and snapshot. Phase methods are non-reentrant and
// must be called in that order.
type Kernel struct {
	runID     uuid.UUID
	logger    zerolog.Logger
	tracer    trace.Tracer
	publisher Publisher
	recorder  Recorder
	now       func() time.Time

	configured    []layers.Layer
	kinds         []layers.Kind
	requests      map[layers.Kind]layers.Request
	artifactCount int

	registry  *Registry
	engine    *DeploymentEngine
	delivery  *DeliverySystem
	dashboard *DashboardAggregator

	mu          sync.Mutex
	phase       Phase
	busy        bool
	deliverable []layers.Kind
	generated   int
}

// New builds a kernel in the idle phase.
func New(opts Options) (*Kernel, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	configured := opts.Layers
	if len(configured) == 0 {
		built, err := layers.DefaultCatalog().Build(layers.WithClock(now))
		if err != nil {
			return nil, fmt.Errorf("build default layers: %w", err)
		}
		configured = built
	}
	seen := make(map[layers.Kind]struct{}, len(configured))
	kinds := make([]layers.Kind, 0, len(configured))
	for _, l := range configured {
		if l == nil {
			return nil, ErrLayerNil
		}
		if _, ok := seen[l.Kind()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrLayerExists, l.Kind())
		}
		seen[l.Kind()] = struct{}{}
		kinds = append(kinds, l.Kind())
	}

	deliverable := opts.DeliverableKinds
	if len(deliverable) == 0 {
		deliverable = layers.IntersectKinds(layers.DefaultDeliverableKinds(), kinds)
	} else if err := layers.RequireKinds(deliverable, kinds); err != nil {
		return nil, fmt.Errorf("deliverable kinds: %w", err)
	}
	artifactCount := opts.ArtifactCount
	if artifactCount <= 0 {
		artifactCount = DefaultArtifactCount
	}
	historyLimit := opts.HistoryLimit
	if historyLimit == 0 {
		historyLimit = DefaultHistoryLimit
	}
	syncDelay := opts.SyncDelay
	if syncDelay == 0 {
		syncDelay = DefaultSyncDelay
	}

	runID := uuid.New()
	logger = logger.With().Str("run_id", runID.String()).Logger()

	delivery := NewDeliverySystem(historyLimit, logger.With().Str("component", "delivery").Logger(), now)
	return &Kernel{
		runID:         runID,
		logger:        logger,
		tracer:        otel.Tracer("omniversal/kernel"),
		publisher:     opts.Publisher,
		recorder:      opts.Recorder,
		now:           now,
		configured:    append([]layers.Layer(nil), configured...),
		kinds:         kinds,
		requests:      opts.Requests,
		artifactCount: artifactCount,
		registry:      NewRegistry(),
		engine:        NewDeploymentEngine(syncDelay, logger.With().Str("component", "deployment").Logger(), now),
		delivery:      delivery,
		dashboard:     NewDashboardAggregator(delivery, historyLimit, now),
		phase:         PhaseIdle,
		deliverable:   append([]layers.Kind(nil), deliverable...),
	}, nil
}

func (k *Kernel) RunID() uuid.UUID { return k.runID }

// Phase returns the last completed phase.
func (k *Kernel) Phase() Phase {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.phase
}

func (k *Kernel) Registry() *Registry { return k.registry }

func (k *Kernel) Engine() *DeploymentEngine { return k.engine }

func (k *Kernel) Delivery() *DeliverySystem { return k.delivery }

func (k *Kernel) Dashboard() *DashboardAggregator { return k.dashboard }

// DeliverableKinds returns the kinds currently eligible for artifacts.
func (k *Kernel) DeliverableKinds() []layers.Kind {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]layers.Kind(nil), k.deliverable...)
}

// SetDeliverableKinds replaces the deliverable set. The next delivery uses
// the new set and its length. Every kind must be a configured layer.
func (k *Kernel) SetDeliverableKinds(kinds []layers.Kind) error {
	if err := layers.RequireKinds(kinds, k.kinds); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.deliverable = append([]layers.Kind(nil), kinds...)
	return nil
}

func (k *Kernel) begin(name string, from Phase) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.busy {
		return fmt.Errorf("%w: %s while another phase is running", ErrInvalidTransition, name)
	}
	if k.phase != from {
		return fmt.Errorf("%w: %s requires %s, kernel is %s", ErrInvalidTransition, name, from, k.phase)
	}
	k.busy = true
	return nil
}

func (k *Kernel) finish(to Phase, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.busy = false
	if err != nil {
		k.phase = PhaseFailed
		return
	}
	k.phase = to
}

// track opens a span and returns the phase logger and a completion func that
// records duration, span status and the phase outcome.
func (k *Kernel) track(ctx context.Context, name string) (context.Context, zerolog.Logger, func(error)) {
	ctx, span := k.tracer.Start(ctx, "kernel."+name, trace.WithAttributes(
		attribute.String("run_id", k.runID.String()),
	))
	logger := k.logger.With().Str("phase", name).Logger()
	start := time.Now()
	return ctx, logger, func(err error) {
		elapsed := time.Since(start)
		telemetry.RecordPhase(name, elapsed, err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Dur("duration", elapsed).Msg("phase failed")
		} else {
			logger.Info().Dur("duration", elapsed).Msg("phase complete")
		}
		span.End()
	}
}

func (k *Kernel) publish(ctx context.Context, subject, phase string, data any) {
	if k.publisher == nil {
		return
	}
	evt := PhaseEvent{RunID: k.runID, Phase: phase, Data: data, Timestamp: k.now()}
	if err := k.publisher.Publish(ctx, subject, evt); err != nil {
		k.logger.Warn().Err(err).Str("subject", subject).Msg("publish phase event")
	}
}

// Initialize runs Initialize on every configured layer at once and registers
// the layers in declaration order.
func (k *Kernel) Initialize(ctx context.Context) (descs []*layers.Descriptor, err error) {
	if err := k.begin("initialize", PhaseIdle); err != nil {
		return nil, err
	}
	defer func() { k.finish(PhaseInitializing, err) }()
	ctx, logger, done := k.track(ctx, "initialize")
	defer func() { done(err) }()

	outcomes, err := Gather(ctx, FailFast, len(k.configured), func(ctx context.Context, i int) (*layers.Descriptor, error) {
		return k.configured[i].Initialize(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize layers: %w", err)
	}
	for _, l := range k.configured {
		if err := k.registry.Register(l); err != nil {
			return nil, fmt.Errorf("initialize layers: %w", err)
		}
	}
	descs = Values(outcomes)
	logger.Info().Int("layers", len(descs)).Msg("layers initialized")
	return descs, nil
}

// DeploymentResult summarises the deploy phase.
type DeploymentResult struct {
	DeployedLayers int       `json:"deployed_layers"`
	Recorded       int       `json:"recorded"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Deploy records every registered layer with the deployment engine.
func (k *Kernel) Deploy(ctx context.Context) (res DeploymentResult, err error) {
	if err := k.begin("deploy", PhaseInitializing); err != nil {
		return DeploymentResult{}, err
	}
	defer func() { k.finish(PhaseDeploying, err) }()
	ctx, logger, done := k.track(ctx, "deploy")
	defer func() { done(err) }()

	descs := k.registry.Descriptors()
	outcomes, err := Gather(ctx, FailFast, len(descs), func(ctx context.Context, i int) (bool, error) {
		return k.engine.Deploy(ctx, descs[i])
	})
	if err != nil {
		return DeploymentResult{}, fmt.Errorf("deploy layers: %w", err)
	}
	recorded := 0
	for i, ok := range Values(outcomes) {
		if ok {
			recorded++
			telemetry.RecordDeployment(string(descs[i].Kind))
		}
	}
	res = DeploymentResult{
		DeployedLayers: len(descs),
		Recorded:       recorded,
		Status:         "perpetual",
		Timestamp:      k.now(),
	}
	logger.Info().Int("recorded", recorded).Int64("total", k.engine.DeploymentCount()).Msg("layers deployed")
	k.publish(ctx, SubjectLayersDeployed, "deploy", res)
	return res, nil
}

// Sync moves every deployed layer through syncing back to active, one at a
// time.
func (k *Kernel) Sync(ctx context.Context) (res SyncResult, err error) {
	if err := k.begin("sync", PhaseDeploying); err != nil {
		return SyncResult{}, err
	}
	defer func() { k.finish(PhaseSyncing, err) }()
	ctx, logger, done := k.track(ctx, "sync")
	defer func() { done(err) }()

	res, err = k.engine.SyncAll(ctx, k.engine.ActiveDeployments())
	if err != nil {
		return SyncResult{}, err
	}
	logger.Info().Int("synced", len(res.SyncedLayers)).Msg("layers synchronized")
	k.publish(ctx, SubjectLayersSynced, "sync", res)
	return res, nil
}

// Deliver generates exactly count artifacts and delivers them concurrently.
// A zero count delivers an empty batch. Run passes the configured
// ArtifactCount.
func (k *Kernel) Deliver(ctx context.Context, count int) (res BatchResult, err error) {
	if count < 0 {
		return BatchResult{}, fmt.Errorf("deliver: negative artifact count %d", count)
	}
	if err := k.begin("deliver", PhaseSyncing); err != nil {
		return BatchResult{}, err
	}
	defer func() { k.finish(PhaseDelivering, err) }()
	ctx, logger, done := k.track(ctx, "deliver")
	defer func() { done(err) }()

	k.mu.Lock()
	kinds := append([]layers.Kind(nil), k.deliverable...)
	offset := k.generated
	k.mu.Unlock()

	artifacts, err := GenerateArtifacts(offset, count, kinds, k.now)
	if err != nil {
		return BatchResult{}, fmt.Errorf("generate artifacts: %w", err)
	}
	k.mu.Lock()
	k.generated += len(artifacts)
	k.mu.Unlock()

	res = k.delivery.DeliverBatch(ctx, artifacts)
	for _, a := range artifacts {
		if a.Delivered() {
			telemetry.RecordArtifactDelivered(string(a.LayerKind))
		}
	}
	logger.Info().Int("delivered", res.Delivered).Int("total", res.Total).Msg("artifacts delivered")
	k.publish(ctx, SubjectArtifactsDelivered, "deliver", res)
	return res, nil
}

// OperationsResult holds one result per layer in declaration order.
type OperationsResult struct {
	OperationsCompleted int             `json:"operations_completed"`
	Results             []layers.Result `json:"results"`
}

// RunOperations invokes every layer's domain operation at once. The first
// failure fails the phase with no partial results and leaves the kernel in
// PhaseFailed.
func (k *Kernel) RunOperations(ctx context.Context) (res OperationsResult, err error) {
	if err := k.begin("operations", PhaseDelivering); err != nil {
		return OperationsResult{}, err
	}
	defer func() { k.finish(PhaseRunningOperations, err) }()
	ctx, logger, done := k.track(ctx, "operations")
	defer func() { done(err) }()

	ls := k.registry.Layers()
	outcomes, err := Gather(ctx, FailFast, len(ls), func(ctx context.Context, i int) (layers.Result, error) {
		l := ls[i]
		out, err := l.Execute(ctx, k.request(l.Kind()))
		telemetry.RecordOperation(string(l.Kind()), err == nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.Kind(), err)
		}
		return out, nil
	})
	if err != nil {
		return OperationsResult{}, fmt.Errorf("run unified operations: %w", err)
	}
	results := Values(outcomes)
	res = OperationsResult{OperationsCompleted: len(results), Results: results}
	logger.Info().Int("operations", len(results)).Msg("unified operations completed")
	k.publish(ctx, SubjectOperationsComplete, "operations", res)
	return res, nil
}

func (k *Kernel) request(kind layers.Kind) layers.Request {
	if req, ok := k.requests[kind]; ok {
		return req
	}
	return layers.SampleRequest(kind)
}

// Snapshot aggregates the current layer counters into the dashboard history.
func (k *Kernel) Snapshot(ctx context.Context) (snap DashboardSnapshot, err error) {
	if err := k.begin("snapshot", PhaseRunningOperations); err != nil {
		return DashboardSnapshot{}, err
	}
	defer func() { k.finish(PhaseSnapshotReady, err) }()
	ctx, logger, done := k.track(ctx, "snapshot")
	defer func() { done(err) }()

	snap = k.dashboard.Snapshot(k.registry.Layers()...)
	telemetry.RecordSnapshot()
	if k.recorder != nil {
		if err := k.recorder.SnapshotTaken(ctx, k.runID, snap); err != nil {
			logger.Warn().Err(err).Msg("archive snapshot")
		}
	}
	logger.Info().
		Int("active_layers", snap.ActiveLayers).
		Str("total_architects", FormatCount(snap.TotalArchitects)).
		Int64("nft_minted", snap.NFTMinted).
		Int64("properties_tokenized", snap.PropertiesTokenized).
		Float64("zakat_processed", snap.ZakatProcessed).
		Int64("ai_ml_predictions", snap.AIPredictions).
		Msg("dashboard snapshot")
	k.publish(ctx, SubjectSnapshotCreated, "snapshot", snap)
	return snap, nil
}

// RunReport is the result of a complete Run.
type RunReport struct {
	RunID       uuid.UUID        `json:"run_id"`
	Status      string           `json:"status"`
	Mode        string           `json:"mode"`
	Deployment  DeploymentResult `json:"deployment"`
	Sync        SyncResult       `json:"sync"`
	Artifacts   BatchResult      `json:"artifacts"`
	Operations  OperationsResult `json:"operations"`
	Dashboard   DashboardView    `json:"dashboard"`
	Sovereignty string           `json:"sovereignty"`
}

// Run drives every phase in order. A recorder, when set, archives the run
// start and outcome; archive failures are logged only.
func (k *Kernel) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: k.runID, Mode: ModeMain}
	k.logger.Info().Msg("starting main-infinite system")
	if k.recorder != nil {
		if err := k.recorder.RunStarted(ctx, k.runID, k.now()); err != nil {
			k.logger.Warn().Err(err).Msg("archive run start")
		}
	}

	err := k.runPhases(ctx, &report)
	status := StatusRunning
	if err != nil {
		status = string(PhaseFailed)
	}
	report.Status = status
	if k.recorder != nil {
		// The archive write outlives a cancelled run context.
		rctx := context.WithoutCancel(ctx)
		if rerr := k.recorder.RunFinished(rctx, k.runID, status, k.now(), k.summary()); rerr != nil {
			k.logger.Warn().Err(rerr).Msg("archive run finish")
		}
	}
	if err != nil {
		return report, err
	}

	report.Dashboard = k.dashboard.View()
	report.Sovereignty = "advanced"
	k.logger.Info().
		Int("active_layers", k.registry.Len()).
		Int64("deployments", k.engine.DeploymentCount()).
		Int64("artifacts_delivered", k.delivery.DeliveryCount()).
		Msg("main-infinite system operational")
	return report, nil
}

func (k *Kernel) runPhases(ctx context.Context, report *RunReport) error {
	var err error
	if _, err = k.Initialize(ctx); err != nil {
		return err
	}
	if report.Deployment, err = k.Deploy(ctx); err != nil {
		return err
	}
	if report.Sync, err = k.Sync(ctx); err != nil {
		return err
	}
	if report.Artifacts, err = k.Deliver(ctx, k.artifactCount); err != nil {
		return err
	}
	if report.Operations, err = k.RunOperations(ctx); err != nil {
		return err
	}
	if _, err = k.Snapshot(ctx); err != nil {
		return err
	}
	return nil
}

func (k *Kernel) summary() map[string]any {
	return map[string]any{
		"phase":               string(k.Phase()),
		"layers":              k.registry.Len(),
		"deployments":         k.engine.DeploymentCount(),
		"artifacts_delivered": k.delivery.DeliveryCount(),
	}
}

// Status builds the status document from live counters.
func (k *Kernel) Status() State {
	st := State{
		Kernel:    KernelName,
		Mode:      ModeMain,
		Status:    StatusStandby,
		Dashboard: k.dashboard.View(),
	}
	if k.Phase() == PhaseSnapshotReady {
		st.Status = StatusRunning
	}
	for _, l := range k.registry.Layers() {
		st.Layers.set(l.Report())
	}
	deployments := k.engine.DeploymentCount()
	delivered := k.delivery.DeliveryCount()
	st.Systems = SystemsState{Deployments: &deployments, ArtifactsDelivered: &delivered}
	return st
}

// StateExport is the payload of SubjectStateExported. It carries the
// written document so subscribers need not reread the file.
type StateExport struct {
	Path  string `json:"path"`
	State State  `json:"state"`
}

// ExportState writes Status to path and then announces the file on
// SubjectStateExported. Watchers of the state file should listen for that
// subject rather than SubjectSnapshotCreated, which fires before the file
// exists.
func (k *Kernel) ExportState(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("state path is required")
	}
	st := k.Status()
	if err := WriteState(path, st); err != nil {
		return err
	}
	k.logger.Info().Str("path", path).Msg("state exported")
	k.publish(ctx, SubjectStateExported, "export", StateExport{Path: path, State: st})
	return nil
}
