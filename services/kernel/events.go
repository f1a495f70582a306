package kernel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SubjectLayersDeployed     = "omniversal.layers.deployed"
	SubjectLayersSynced       = "omniversal.layers.synced"
	SubjectArtifactsDelivered = "omniversal.artifacts.delivered"
	SubjectOperationsComplete = "omniversal.operations.completed"
	SubjectSnapshotCreated    = "omniversal.snapshots.created"
	SubjectStateExported      = "omniversal.state.exported"
)

// Publisher emits phase events. pkg/bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Recorder archives runs and snapshots.
type Recorder interface {
	RunStarted(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	RunFinished(ctx context.Context, runID uuid.UUID, status string, finishedAt time.Time, summary map[string]any) error
	SnapshotTaken(ctx context.Context, runID uuid.UUID, snap DashboardSnapshot) error
}

// PhaseEvent is the payload published after a phase completes.
type PhaseEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	Phase     string    `json:"phase"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
