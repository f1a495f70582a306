package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"omniversal/pkg/render"
	"omniversal/services/kernel"
)

const DefaultInterval = 5 * time.Second

// Renderer turns a kernel state document into the ASCII dashboard.
type Renderer struct {
	engine *render.Engine
	now    func() time.Time
}

func NewRenderer(now func() time.Time) (*Renderer, error) {
	engine, err := render.New()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Renderer{engine: engine, now: now}, nil
}

// Render produces the summary box followed by the per-layer detail box.
func (r *Renderer) Render(st kernel.State) (string, error) {
	view := BuildView(st, r.now())
	summary, err := r.engine.Render("dashboard.tmpl", view)
	if err != nil {
		return "", err
	}
	details, err := r.engine.Render("layers.tmpl", view)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(summary, "\n") + "\n\n" + details, nil
}

// Subscriber delivers kernel events. pkg/bus satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// Watcher re-renders the state file on an interval and whenever the kernel
// announces a fresh export.
type Watcher struct {
	path     string
	interval time.Duration
	renderer *Renderer
	out      io.Writer
	logger   zerolog.Logger
	events   Subscriber
}

// NewWatcher validates its collaborators. events may be nil.
func NewWatcher(path string, interval time.Duration, renderer *Renderer, out io.Writer, logger zerolog.Logger, events Subscriber) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("state path is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if out == nil {
		return nil, errors.New("output writer is required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{path: path, interval: interval, renderer: renderer, out: out, logger: logger, events: events}, nil
}

// RenderOnce loads the state file and writes one frame.
func (w *Watcher) RenderOnce() error {
	st, err := kernel.LoadState(w.path)
	if err != nil {
		return err
	}
	frame, err := w.renderer.Render(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w.out, "\n\n"+frame)
	return err
}

// Run renders until ctx ends. Render failures are logged and retried on the
// next tick.
func (w *Watcher) Run(ctx context.Context) error {
	refresh := make(chan struct{}, 1)
	if w.events != nil {
		sub, err := w.events.Subscribe(ctx, kernel.SubjectStateExported, "dashboard", func(ctx context.Context, data []byte) error {
			select {
			case refresh <- struct{}{}:
			default:
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribe state exports: %w", err)
		}
		defer sub.Close()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RenderOnce(); err != nil {
			w.logger.Error().Err(err).Str("path", w.path).Msg("render dashboard")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-refresh:
			w.logger.Debug().Msg("state export received")
		}
	}
}
