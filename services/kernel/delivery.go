package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"omniversal/services/layers"
)

const (
	DefaultArtifactCount = 20
	DefaultHistoryLimit  = 256
)

var ErrNoDeliverableKinds = errors.New("no deliverable layer kinds configured")

// Artifact is a unit of output delivered to end users.
type Artifact struct {
	ID        string
	LayerKind layers.Kind
	Content   map[string]any
	Timestamp time.Time

	delivered atomic.Bool
}

// Delivered reports whether the artifact has been handed over.
func (a *Artifact) Delivered() bool {
	return a.delivered.Load()
}

func (a *Artifact) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string         `json:"artifact_id"`
		Layer     layers.Kind    `json:"layer"`
		Content   map[string]any `json:"content"`
		Delivered bool           `json:"delivered"`
		Timestamp time.Time      `json:"timestamp"`
	}{a.ID, a.LayerKind, a.Content, a.Delivered(), a.Timestamp})
}

// GenerateArtifacts builds count artifacts whose kinds rotate through kinds
// by batch index. Sequence numbers, and so IDs, start at offset.
func GenerateArtifacts(offset, count int, kinds []layers.Kind, now func() time.Time) ([]*Artifact, error) {
	if count <= 0 {
		return nil, nil
	}
	if len(kinds) == 0 {
		return nil, ErrNoDeliverableKinds
	}
	if now == nil {
		now = time.Now
	}
	out := make([]*Artifact, 0, count)
	for i := 0; i < count; i++ {
		seq := offset + i
		out = append(out, &Artifact{
			ID:        fmt.Sprintf("ARTIFACT-%08d", seq),
			LayerKind: kinds[i%len(kinds)],
			Content:   map[string]any{"data": fmt.Sprintf("payload_%d", seq)},
			Timestamp: now(),
		})
	}
	return out, nil
}

// BatchResult summarises a batch delivery.
type BatchResult struct {
	Delivered int       `json:"delivered"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliverySystem hands artifacts over and keeps a bounded delivery history.
type DeliverySystem struct {
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	count   int64
	history *ring[*Artifact]
}

// NewDeliverySystem builds a delivery system retaining at most historyLimit
// artifacts. historyLimit <= 0 keeps everything.
func NewDeliverySystem(historyLimit int, logger zerolog.Logger, now func() time.Time) *DeliverySystem {
	if now == nil {
		now = time.Now
	}
	return &DeliverySystem{
		logger:  logger,
		now:     now,
		history: newRing[*Artifact](historyLimit),
	}
}

// DeliverOne marks a as delivered and records it. An artifact is delivered at
// most once; a repeat returns false and changes nothing.
func (s *DeliverySystem) DeliverOne(ctx context.Context, a *Artifact) bool {
	if a == nil || !a.delivered.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	s.count++
	s.history.push(a)
	s.mu.Unlock()
	s.logger.Debug().Str("artifact_id", a.ID).Str("layer", string(a.LayerKind)).Msg("artifact delivered")
	return true
}

// DeliverBatch delivers every artifact concurrently and counts successes.
func (s *DeliverySystem) DeliverBatch(ctx context.Context, artifacts []*Artifact) BatchResult {
	outcomes, _ := Gather(ctx, CollectAll, len(artifacts), func(ctx context.Context, i int) (bool, error) {
		return s.DeliverOne(ctx, artifacts[i]), nil
	})
	delivered := 0
	for _, ok := range Values(outcomes) {
		if ok {
			delivered++
		}
	}
	return BatchResult{Delivered: delivered, Total: len(artifacts), Timestamp: s.now()}
}

// DeliveryCount returns the number of artifacts delivered so far.
func (s *DeliverySystem) DeliveryCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Delivered returns the retained delivery history, oldest first.
func (s *DeliverySystem) Delivered() []*Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.items()
}
