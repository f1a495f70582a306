package layers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind identifies a mission layer.
type Kind string

const (
	KindAIML           Kind = "tatras_ai_ml"
	KindRealEstate     Kind = "real_estate_tokenization"
	KindCRMAnalytics   Kind = "crm_analytics"
	KindZakat          Kind = "zakat_automation"
	KindNFTAchievement Kind = "nft_achievement"
	KindAuction        Kind = "auction_preparation"
	KindBitcoinBridge  Kind = "helix_bitcoin_bridge"
)

// StateKey is the key used for the layer in the exported state file.
func (k Kind) StateKey() string {
	if k == KindRealEstate {
		return "real_estate"
	}
	return string(k)
}

// Status is the deployment status of a layer descriptor.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDeploying Status = "deploying"
	StatusActive    Status = "active"
	StatusSyncing   Status = "syncing"
	StatusError     Status = "error"
)

// Metadata is the typed, per-kind description attached to a descriptor.
type Metadata interface {
	LayerKind() Kind
}

// Descriptor is the lifecycle record produced by Initialize. Status and
// LastUpdated are guarded by a per-descriptor mutex and are written by the
// deployment engine only.
type Descriptor struct {
	Kind     Kind
	Version  string
	Metadata Metadata

	mu          sync.RWMutex
	status      Status
	lastUpdated time.Time
}

// NewDescriptor builds a descriptor in the given status. An empty status
// means StatusPending.
func NewDescriptor(kind Kind, version string, meta Metadata, status Status, at time.Time) *Descriptor {
	if status == "" {
		status = StatusPending
	}
	return &Descriptor{
		Kind:        kind,
		Version:     version,
		Metadata:    meta,
		status:      status,
		lastUpdated: at,
	}
}

// Status returns the current status.
func (d *Descriptor) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// LastUpdated returns the time of the last status transition.
func (d *Descriptor) LastUpdated() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastUpdated
}

// Transition moves the descriptor to status. The recorded timestamp is forced
// strictly after the previous one so coarse clocks never produce ties.
func (d *Descriptor) Transition(status Status, at time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !at.After(d.lastUpdated) {
		at = d.lastUpdated.Add(time.Nanosecond)
	}
	d.status = status
	d.lastUpdated = at
	return at
}

func (d *Descriptor) MarshalJSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.Marshal(struct {
		LayerType   Kind      `json:"layer_type"`
		Version     string    `json:"version"`
		Status      Status    `json:"status"`
		Metadata    Metadata  `json:"metadata"`
		LastUpdated time.Time `json:"last_updated"`
	}{d.Kind, d.Version, d.status, d.Metadata, d.lastUpdated})
}

// Result is the record returned by a layer's domain operation.
type Result interface {
	LayerKind() Kind
}

// Layer is the uniform lifecycle contract every mission layer implements.
type Layer interface {
	Kind() Kind
	// Initialize builds the layer descriptor. It does not fail for any
	// built-in variant.
	Initialize(ctx context.Context) (*Descriptor, error)
	// Descriptor returns the descriptor built by Initialize, or nil.
	Descriptor() *Descriptor
	Execute(ctx context.Context, req Request) (Result, error)
	// Report returns the counters exported in the state file.
	Report() any
}

// Read-only counter views consumed by the dashboard aggregator.
type (
	PredictionCounter interface {
		Predictions() int64
	}
	TokenizationCounter interface {
		PropertiesTokenized() int64
	}
	ArchitectCounter interface {
		TotalArchitects() int64
	}
	ZakatCounter interface {
		ZakatProcessed() float64
	}
	MintCounter interface {
		NFTsMinted() int64
	}
)

// Request carries the input of a domain operation.
type Request map[string]any

// String returns the string stored at key, or def.
func (r Request) String(key, def string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the numeric value stored at key, or 0.
func (r Request) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
