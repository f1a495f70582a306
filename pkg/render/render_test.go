package render

import (
	"strings"
	"testing"
	"unicode/utf8"
)

type line struct{ Name, Caption, Value string }

type item struct{ Label, Value string }

type block struct {
	Title string
	Items []item
}

func TestRenderDashboard(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := e.Render("dashboard.tmpl", map[string]any{
		"Status":             "operational",
		"Mode":               "main-infinite",
		"Timestamp":          "2025-01-01 00:00:00",
		"Layers":             []line{{Name: "CRM Analytics (Architects)", Caption: "Total architects in system", Value: Count(38000000)}},
		"Deployments":        int64(7),
		"ArtifactsDelivered": int64(20),
		"ActiveLayers":       7,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"STATUS: OPERATIONAL", "[38,000,000]", "Artifacts Delivered:", "[20]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	for i, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if got := utf8.RuneCountInString(l); got != Width+2 {
			t.Fatalf("line %d width = %d, want %d: %q", i, got, Width+2, l)
		}
	}
}

func TestRenderLayerDetails(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Render("layers.tmpl", map[string]any{
		"Details": []block{{Title: "Zakat Automation", Items: []item{{"Total Processed", Money(2500)}}}},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "• Total Processed: $2,500.00") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, _ := New()
	if _, err := e.Render("missing.tmpl", nil); err == nil {
		t.Fatal("expected error")
	}
	var nilEngine *Engine
	if _, err := nilEngine.Render("dashboard.tmpl", nil); err == nil {
		t.Fatal("expected nil engine error")
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Count(38000000), "38,000,000"},
		{Count(7), "7"},
		{Count(int64(1234)), "1,234"},
		{Money(100000.5), "$100,000.50"},
		{Money(0), "$0.00"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestMetricAlignsRight(t *testing.T) {
	l := Metric("Perpetual Deployments:", "7")
	if utf8.RuneCountInString(l) != Width+2 || !strings.HasSuffix(l, "[7] ║") {
		t.Fatalf("metric = %q", l)
	}
}
