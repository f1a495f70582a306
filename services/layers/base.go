package layers

import (
	"sync"
	"time"
)

const defaultVersion = "1.0.0"

// Option customises a layer at construction.
type Option func(*base)

// WithVersion overrides the descriptor version.
func WithVersion(version string) Option {
	return func(b *base) {
		if version != "" {
			b.version = version
		}
	}
}

// WithClock replaces time.Now for descriptor and result timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// base holds the lifecycle state shared by every variant. mu also guards the
// variant's own counters.
type base struct {
	kind    Kind
	version string
	now     func() time.Time

	mu   sync.Mutex
	desc *Descriptor
}

func (b *base) setup(kind Kind, opts []Option) {
	b.kind = kind
	b.version = defaultVersion
	b.now = time.Now
	for _, opt := range opts {
		opt(b)
	}
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) Descriptor() *Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.desc
}

func (b *base) initialize(meta Metadata) *Descriptor {
	desc := NewDescriptor(b.kind, b.version, meta, StatusActive, b.now())
	b.mu.Lock()
	b.desc = desc
	b.mu.Unlock()
	return desc
}
