package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLoggerWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("omniversal-kernel", "debug", "json", &buf)
	logger.Debug().Str("phase", "sync").Msg("synced")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "omniversal-kernel" {
		t.Fatalf("service = %v", entry["service"])
	}
	if entry["phase"] != "sync" || entry["message"] != "synced" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitWithoutEndpointReturnsWorkingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("api", "info", "json", &buf)

	shutdown, middleware, err := Init(context.Background(), "api", "", logger)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"path":"/v1/status"`)) {
		t.Fatalf("request log missing path: %s", buf.String())
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, _, err := Init(context.Background(), "", "", zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordPhase("deploy", 12*time.Millisecond, true)
	RecordDeployment("tatras_ai_ml")
	RecordArtifactDelivered("zakat_automation")
	RecordOperation("helix_bitcoin_bridge", false)
	RecordSnapshot()
	RecordHTTPRequest("GET", 200, time.Millisecond)
}
