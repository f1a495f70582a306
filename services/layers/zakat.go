package layers

import (
	"context"
	"time"
)

// ZakatRate is the standard 2.5% rate.
const ZakatRate = 0.025

type ZakatMetadata struct {
	NisabThreshold bool    `json:"nisab_threshold"`
	Rate           float64 `json:"rate"`
}

func (ZakatMetadata) LayerKind() Kind { return KindZakat }

// ZakatAssessment is the result of one calculation.
type ZakatAssessment struct {
	Wealth    float64   `json:"wealth"`
	ZakatDue  float64   `json:"zakat_due"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

func (ZakatAssessment) LayerKind() Kind { return KindZakat }

type ZakatReport struct {
	TotalProcessed float64 `json:"total_processed"`
	Calculations   int64   `json:"calculations"`
}

// Zakat automates zakat calculation.
type Zakat struct {
	base
	processed    float64
	calculations int64
}

func NewZakat(opts ...Option) *Zakat {
	l := &Zakat{}
	l.setup(KindZakat, opts)
	return l
}

func (l *Zakat) Initialize(ctx context.Context) (*Descriptor, error) {
	return l.initialize(ZakatMetadata{NisabThreshold: true, Rate: ZakatRate}), nil
}

// Execute computes zakat due on "total_wealth".
func (l *Zakat) Execute(ctx context.Context, req Request) (Result, error) {
	wealth := req.Float("total_wealth")
	due := wealth * ZakatRate

	l.mu.Lock()
	defer l.mu.Unlock()
	l.calculations++
	l.processed += due
	return ZakatAssessment{
		Wealth:    wealth,
		ZakatDue:  due,
		Currency:  req.String("currency", "USD"),
		Timestamp: l.now(),
	}, nil
}

func (l *Zakat) ZakatProcessed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed
}

func (l *Zakat) Report() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ZakatReport{TotalProcessed: l.processed, Calculations: l.calculations}
}
