package kernel

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"omniversal/services/layers"
)

type staticCount int64

func (c staticCount) DeliveryCount() int64 { return int64(c) }

func TestDashboardLatestNoData(t *testing.T) {
	a := NewDashboardAggregator(nil, 0, nil)
	if _, ok := a.Latest(); ok {
		t.Fatal("Latest() reported data on empty history")
	}
	view := a.View()
	if !view.NoData() || view.CurrentMetrics != nil {
		t.Fatalf("view = %+v, want no_data sentinel", view)
	}
	data, _ := json.Marshal(view)
	if string(data) != `{"status":"no_data"}` {
		t.Fatalf("json = %s", data)
	}
}

func TestDashboardSnapshotReadsCounters(t *testing.T) {
	ctx := context.Background()
	ls, err := layers.DefaultCatalog().Build()
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range ls {
		if _, err := l.Initialize(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Execute(ctx, layers.SampleRequest(l.Kind())); err != nil {
			t.Fatalf("%s Execute() error = %v", l.Kind(), err)
		}
	}

	a := NewDashboardAggregator(staticCount(20), 0, nil)
	snap := a.Snapshot(ls...)
	if snap.TotalArchitects != 38000000 {
		t.Fatalf("total architects = %d", snap.TotalArchitects)
	}
	if snap.ActiveLayers != 7 || snap.TotalArtifacts != 20 {
		t.Fatalf("active/artifacts = %d/%d", snap.ActiveLayers, snap.TotalArtifacts)
	}
	if snap.NFTMinted != 1 || snap.PropertiesTokenized != 1 || snap.AIPredictions != 1 || snap.ZakatProcessed != 2500 {
		t.Fatalf("counters = %+v", snap)
	}

	latest, ok := a.Latest()
	if !ok || latest.ID != snap.ID {
		t.Fatalf("Latest() = %+v, %v", latest, ok)
	}
	if got := a.View().TotalArchitects; got != "38,000,000" {
		t.Fatalf("formatted architects = %q", got)
	}
}

func TestDashboardHistoryIsTimeAscending(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewDashboardAggregator(nil, 3, func() time.Time { return fixed })
	for i := 0; i < 5; i++ {
		a.Snapshot()
	}
	history := a.History()
	if len(history) != 3 {
		t.Fatalf("history = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if !history[i].Timestamp.After(history[i-1].Timestamp) {
			t.Fatalf("history not ascending at %d", i)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{38000000, "38,000,000"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Fatalf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadStateMissingFileDefaults(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	data, _ := json.Marshal(st)
	want := `{"mode":"main-infinite","status":"standby","layers":{},"systems":{},"dashboard":{}}`
	if string(data) != want {
		t.Fatalf("default state = %s, want %s", data, want)
	}
}

func TestLoadStatePropagatesOtherErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadState(dir); err == nil {
		t.Fatal("expected error reading a directory")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(bad); err == nil {
		t.Fatal("expected decode error")
	}
}
