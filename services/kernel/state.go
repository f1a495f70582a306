package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"omniversal/services/layers"
)

const (
	KernelName       = "omniversal-kernel"
	ModeMain         = "main-infinite"
	StatusStandby    = "standby"
	StatusRunning    = "operational"
	DefaultStateFile = "omniversal_state.json"
)

// State is the status document exported to disk and served by the API.
type State struct {
	Kernel    string        `json:"kernel,omitempty"`
	Mode      string        `json:"mode"`
	Status    string        `json:"status"`
	Layers    LayerStates   `json:"layers"`
	Systems   SystemsState  `json:"systems"`
	Dashboard DashboardView `json:"dashboard"`
}

// LayerStates holds the exported counters keyed by layer state key. Layers
// that are not configured are omitted.
type LayerStates struct {
	AIML          *layers.AIMLReport         `json:"tatras_ai_ml,omitempty"`
	RealEstate    *layers.TokenizationReport `json:"real_estate,omitempty"`
	CRMAnalytics  *layers.AnalyticsReport    `json:"crm_analytics,omitempty"`
	Zakat         *layers.ZakatReport        `json:"zakat_automation,omitempty"`
	NFT           *layers.NFTReport          `json:"nft_achievement,omitempty"`
	Auction       *layers.AuctionReport      `json:"auction_preparation,omitempty"`
	BitcoinBridge *layers.BridgeReport       `json:"helix_bitcoin_bridge,omitempty"`
}

func (s *LayerStates) set(report any) {
	switch r := report.(type) {
	case layers.AIMLReport:
		s.AIML = &r
	case layers.TokenizationReport:
		s.RealEstate = &r
	case layers.AnalyticsReport:
		s.CRMAnalytics = &r
	case layers.ZakatReport:
		s.Zakat = &r
	case layers.NFTReport:
		s.NFT = &r
	case layers.AuctionReport:
		s.Auction = &r
	case layers.BridgeReport:
		s.BitcoinBridge = &r
	}
}

// SystemsState carries the engine counters. Both are nil in a default state.
type SystemsState struct {
	Deployments        *int64 `json:"deployments,omitempty"`
	ArtifactsDelivered *int64 `json:"artifacts_delivered,omitempty"`
}

// DefaultState is the document used when no state file exists yet.
func DefaultState() State {
	return State{Mode: ModeMain, Status: StatusStandby}
}

// LoadState reads a state document. A missing file yields DefaultState; any
// other failure is returned.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state %s: %w", path, err)
	}
	return st, nil
}

// WriteState writes st as indented JSON, replacing path atomically.
func WriteState(path string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
