package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"omniversal/services/kernel"
)

var fixed = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func runKernel(t *testing.T) kernel.State {
	t.Helper()
	k, err := kernel.New(kernel.Options{SyncDelay: -1})
	if err != nil {
		t.Fatalf("kernel.New() error = %v", err)
	}
	if _, err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return k.Status()
}

func TestRenderOperationalState(t *testing.T) {
	r, err := NewRenderer(func() time.Time { return fixed })
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	out, err := r.Render(runKernel(t))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{
		"STATUS: OPERATIONAL",
		"TIMESTAMP: 2025-06-01 09:30:00",
		"[38,000,000]",
		"[$2,500.00]",
		"• Total Value: $500,000.00",
		"Helix Bitcoin Bridge",
		"DETAILED LAYER INFORMATION",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("dashboard missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDefaultState(t *testing.T) {
	r, err := NewRenderer(func() time.Time { return fixed })
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(kernel.DefaultState())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"STATUS: STANDBY", "No layer data yet", "No layers reported"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dashboard missing %q:\n%s", want, out)
		}
	}
}

func TestBuildViewCopiesSystems(t *testing.T) {
	view := BuildView(runKernel(t), fixed)
	if view.Deployments != 7 || view.ArtifactsDelivered != 20 || view.ActiveLayers != 7 {
		t.Fatalf("view systems = %d/%d/%d", view.Deployments, view.ArtifactsDelivered, view.ActiveLayers)
	}
	if len(view.Layers) != 7 || len(view.Details) != 7 {
		t.Fatalf("layers = %d, details = %d", len(view.Layers), len(view.Details))
	}
}

func TestWatcherRenderOnceMissingFile(t *testing.T) {
	r, _ := NewRenderer(func() time.Time { return fixed })
	var buf bytes.Buffer
	w, err := NewWatcher(filepath.Join(t.TempDir(), "absent.json"), time.Second, r, &buf, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.RenderOnce(); err != nil {
		t.Fatalf("RenderOnce() error = %v", err)
	}
	if !strings.Contains(buf.String(), "STATUS: STANDBY") {
		t.Fatalf("output:\n%s", buf.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), "OMNIVERSAL KERNEL DASHBOARD")
}

// memBus routes published events to the handler subscribed on the same
// subject, standing in for JetStream.
type memBus struct {
	mu       sync.Mutex
	handlers map[string]func(context.Context, []byte) error
}

func (b *memBus) Subscribe(ctx context.Context, subj, durable string, fn func(context.Context, []byte) error) (io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]func(context.Context, []byte) error)
	}
	b.handlers[subj] = fn
	return io.NopCloser(nil), nil
}

func (b *memBus) Publish(ctx context.Context, subj string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.mu.Lock()
	h := b.handlers[subj]
	b.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, data)
}

func (b *memBus) subscribed(subj string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handlers[subj]
	return ok
}

func TestWatcherRendersExportedState(t *testing.T) {
	r, _ := NewRenderer(func() time.Time { return fixed })
	out := &syncBuffer{}
	events := &memBus{}
	path := filepath.Join(t.TempDir(), "state.json")
	w, err := NewWatcher(path, time.Hour, r, out, zerolog.Nop(), events)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for out.frames() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not render first frame")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !events.subscribed(kernel.SubjectStateExported) {
		t.Fatalf("watcher not subscribed to %s", kernel.SubjectStateExported)
	}
	if !strings.Contains(out.String(), "STATUS: STANDBY") {
		t.Fatalf("first frame:\n%s", out.String())
	}

	k, err := kernel.New(kernel.Options{SyncDelay: -1, Publisher: events})
	if err != nil {
		t.Fatalf("kernel.New() error = %v", err)
	}
	if _, err := k.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.frames(); got != 1 {
		t.Fatalf("frames after run = %d, want 1 until the state is exported", got)
	}
	if err := k.ExportState(ctx, path); err != nil {
		t.Fatalf("ExportState() error = %v", err)
	}

	for !strings.Contains(out.String(), "STATUS: OPERATIONAL") {
		if time.Now().After(deadline) {
			t.Fatalf("exported state never rendered:\n%s", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestNewWatcherValidates(t *testing.T) {
	r, _ := NewRenderer(nil)
	if _, err := NewWatcher("", 0, r, io.Discard, zerolog.Nop(), nil); err == nil {
		t.Fatal("expected path error")
	}
	if _, err := NewWatcher("s.json", 0, nil, io.Discard, zerolog.Nop(), nil); err == nil {
		t.Fatal("expected renderer error")
	}
}
