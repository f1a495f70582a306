package layers

import (
	"context"
	"time"
)

// TotalArchitects is the fixed population served by the analytics layer.
const TotalArchitects int64 = 38_000_000

type AnalyticsMetadata struct {
	TotalArchitects int64  `json:"total_architects"`
	AnalyticsEngine string `json:"analytics_engine"`
}

func (AnalyticsMetadata) LayerKind() Kind { return KindCRMAnalytics }

// ArchitectActivity is the processed analytics record for one activity.
type ArchitectActivity struct {
	ArchitectID  string    `json:"architect_id"`
	ActivityType string    `json:"activity_type"`
	Score        float64   `json:"score"`
	Timestamp    time.Time `json:"timestamp"`
}

func (ArchitectActivity) LayerKind() Kind { return KindCRMAnalytics }

type AnalyticsReport struct {
	TotalArchitects    int64 `json:"total_architects"`
	AnalyticsProcessed int64 `json:"analytics_processed"`
}

// Analytics is the CRM analytics layer.
type Analytics struct {
	base
	processed int64
}

func NewAnalytics(opts ...Option) *Analytics {
	l := &Analytics{}
	l.setup(KindCRMAnalytics, opts)
	return l
}

func (l *Analytics) Initialize(ctx context.Context) (*Descriptor, error) {
	return l.initialize(AnalyticsMetadata{
		TotalArchitects: TotalArchitects,
		AnalyticsEngine: "real_time_streaming",
	}), nil
}

func (l *Analytics) Execute(ctx context.Context, req Request) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed++
	return ArchitectActivity{
		ArchitectID:  req.String("architect_id", ""),
		ActivityType: req.String("type", ""),
		Score:        req.Float("score"),
		Timestamp:    l.now(),
	}, nil
}

func (l *Analytics) TotalArchitects() int64 {
	return TotalArchitects
}

func (l *Analytics) Processed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed
}

func (l *Analytics) Report() any {
	return AnalyticsReport{TotalArchitects: TotalArchitects, AnalyticsProcessed: l.Processed()}
}
