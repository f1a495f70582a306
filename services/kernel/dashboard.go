package kernel

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"omniversal/services/layers"
)

const (
	DashboardOperational = "operational"
	DashboardNoData      = "no_data"
	DashboardUptime      = "perpetual"
)

// DashboardSnapshot is an immutable point-in-time aggregation of layer
// counters. It is handed out by value.
type DashboardSnapshot struct {
	ID                  uuid.UUID `json:"id"`
	TotalArchitects     int64     `json:"total_architects"`
	ActiveLayers        int       `json:"active_layers"`
	TotalArtifacts      int64     `json:"total_artifacts"`
	NFTMinted           int64     `json:"nft_minted"`
	ZakatProcessed      float64   `json:"zakat_processed"`
	PropertiesTokenized int64     `json:"properties_tokenized"`
	AIPredictions       int64     `json:"ai_ml_predictions"`
	Timestamp           time.Time `json:"timestamp"`
}

// DashboardView is the dashboard block of the status document. An empty
// history yields only Status == DashboardNoData.
type DashboardView struct {
	CurrentMetrics  *DashboardSnapshot `json:"current_metrics,omitempty"`
	TotalArchitects string             `json:"total_architects,omitempty"`
	Status          string             `json:"status,omitempty"`
	Uptime          string             `json:"uptime,omitempty"`
}

// NoData reports whether the view is the empty-history sentinel.
func (v DashboardView) NoData() bool {
	return v.Status == DashboardNoData
}

// ArtifactCounter exposes the running delivery total.
type ArtifactCounter interface {
	DeliveryCount() int64
}

// DashboardAggregator turns layer counters into snapshots and keeps a bounded,
// time-ascending history of them.
type DashboardAggregator struct {
	artifacts ArtifactCounter
	now       func() time.Time

	mu      sync.Mutex
	history *ring[DashboardSnapshot]
}

// NewDashboardAggregator builds an aggregator. artifacts may be nil, in which
// case snapshots report zero artifacts.
func NewDashboardAggregator(artifacts ArtifactCounter, historyLimit int, now func() time.Time) *DashboardAggregator {
	if now == nil {
		now = time.Now
	}
	return &DashboardAggregator{
		artifacts: artifacts,
		now:       now,
		history:   newRing[DashboardSnapshot](historyLimit),
	}
}

// Snapshot reads the current counters of ls, appends the record to history
// and returns it.
func (a *DashboardAggregator) Snapshot(ls ...layers.Layer) DashboardSnapshot {
	snap := DashboardSnapshot{ID: uuid.New()}
	for _, l := range ls {
		if d := l.Descriptor(); d != nil && d.Status() == layers.StatusActive {
			snap.ActiveLayers++
		}
		switch c := l.(type) {
		case layers.ArchitectCounter:
			snap.TotalArchitects = c.TotalArchitects()
		case layers.MintCounter:
			snap.NFTMinted = c.NFTsMinted()
		case layers.ZakatCounter:
			snap.ZakatProcessed = c.ZakatProcessed()
		case layers.TokenizationCounter:
			snap.PropertiesTokenized = c.PropertiesTokenized()
		case layers.PredictionCounter:
			snap.AIPredictions = c.Predictions()
		}
	}
	if a.artifacts != nil {
		snap.TotalArtifacts = a.artifacts.DeliveryCount()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	snap.Timestamp = a.now()
	if prev, ok := a.history.last(); ok && !snap.Timestamp.After(prev.Timestamp) {
		snap.Timestamp = prev.Timestamp.Add(time.Nanosecond)
	}
	a.history.push(snap)
	return snap
}

// Latest returns the most recent snapshot. ok is false when history is empty.
func (a *DashboardAggregator) Latest() (snap DashboardSnapshot, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.last()
}

// History returns the retained snapshots, oldest first.
func (a *DashboardAggregator) History() []DashboardSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.items()
}

// View renders the latest snapshot for the status document.
func (a *DashboardAggregator) View() DashboardView {
	snap, ok := a.Latest()
	if !ok {
		return DashboardView{Status: DashboardNoData}
	}
	return DashboardView{
		CurrentMetrics:  &snap,
		TotalArchitects: FormatCount(snap.TotalArchitects),
		Status:          DashboardOperational,
		Uptime:          DashboardUptime,
	}
}

// FormatCount renders n with thousand separators, e.g. 38,000,000.
func FormatCount(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
