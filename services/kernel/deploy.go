package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omniversal/services/layers"
)

const DefaultSyncDelay = 100 * time.Millisecond

// SyncResult lists the layers a sync cycle touched, in input order.
type SyncResult struct {
	SyncedLayers []layers.Kind `json:"synced_layers"`
	Timestamp    time.Time     `json:"timestamp"`
}

// DeploymentEngine records deployments and drives sync cycles. Descriptor
// status is written only here once a layer has been initialized.
type DeploymentEngine struct {
	syncDelay time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	count    int64
	active   []*layers.Descriptor
	deployed map[layers.Kind]struct{}
}

// NewDeploymentEngine builds an engine. A negative delay disables the pause
// between syncing and active.
func NewDeploymentEngine(syncDelay time.Duration, logger zerolog.Logger, now func() time.Time) *DeploymentEngine {
	if now == nil {
		now = time.Now
	}
	return &DeploymentEngine{
		syncDelay: syncDelay,
		now:       now,
		logger:    logger,
		deployed:  make(map[layers.Kind]struct{}),
	}
}

// Deploy records the descriptor as deployed and moves it through deploying
// to active. A second deploy of the same kind is a no-op and reports false.
func (e *DeploymentEngine) Deploy(ctx context.Context, d *layers.Descriptor) (bool, error) {
	if d == nil {
		return false, fmt.Errorf("deploy: %w", ErrLayerNil)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.deployed[d.Kind]; ok {
		e.logger.Debug().Str("layer", string(d.Kind)).Msg("layer already deployed")
		return false, nil
	}
	d.Transition(layers.StatusDeploying, e.now())
	e.deployed[d.Kind] = struct{}{}
	e.active = append(e.active, d)
	d.Transition(layers.StatusActive, e.now())
	e.count++
	e.logger.Info().Str("layer", string(d.Kind)).Int64("deployments", e.count).Msg("layer deployed")
	return true, nil
}

// SyncAll walks the descriptors in order, moving each through syncing and
// back to active. A cancelled context leaves the current layer in error.
func (e *DeploymentEngine) SyncAll(ctx context.Context, ds []*layers.Descriptor) (SyncResult, error) {
	synced := make([]layers.Kind, 0, len(ds))
	for _, d := range ds {
		d.Transition(layers.StatusSyncing, e.now())
		if err := e.pause(ctx); err != nil {
			d.Transition(layers.StatusError, e.now())
			return SyncResult{}, fmt.Errorf("sync %s: %w", d.Kind, err)
		}
		d.Transition(layers.StatusActive, e.now())
		synced = append(synced, d.Kind)
		e.logger.Debug().Str("layer", string(d.Kind)).Msg("layer synced")
	}
	return SyncResult{SyncedLayers: synced, Timestamp: e.now()}, nil
}

func (e *DeploymentEngine) pause(ctx context.Context) error {
	if e.syncDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.syncDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DeploymentCount returns the number of recorded deployments.
func (e *DeploymentEngine) DeploymentCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// ActiveDeployments returns the deployed descriptors in deploy order.
func (e *DeploymentEngine) ActiveDeployments() []*layers.Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*layers.Descriptor(nil), e.active...)
}
