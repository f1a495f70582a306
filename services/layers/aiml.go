package layers

import (
	"context"
	"time"
)

// AIMLMetadata describes the white-label model set.
type AIMLMetadata struct {
	Models       []string `json:"models"`
	Capabilities string   `json:"capabilities"`
}

func (AIMLMetadata) LayerKind() Kind { return KindAIML }

// Prediction is the result of an AI/ML prediction.
type Prediction struct {
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	ModelUsed  string    `json:"model_used"`
	Timestamp  time.Time `json:"timestamp"`
}

func (Prediction) LayerKind() Kind { return KindAIML }

// AIMLReport is the state-file view of the AI/ML layer.
type AIMLReport struct {
	Predictions int64 `json:"predictions"`
}

var defaultModels = []string{
	"property_valuation_model",
	"architect_behavior_model",
	"zakat_calculation_model",
	"achievement_prediction_model",
}

// AIML is the Tatras white-label prediction layer.
type AIML struct {
	base
	models      []string
	predictions int64
}

func NewAIML(opts ...Option) *AIML {
	l := &AIML{}
	l.setup(KindAIML, opts)
	return l
}

func (l *AIML) Initialize(ctx context.Context) (*Descriptor, error) {
	models := append([]string(nil), defaultModels...)
	l.mu.Lock()
	l.models = models
	l.mu.Unlock()
	return l.initialize(AIMLMetadata{Models: models, Capabilities: "predictive_analytics"}), nil
}

// Execute runs a prediction against the primary model.
func (l *AIML) Execute(ctx context.Context, req Request) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.predictions++
	model := ""
	if len(l.models) > 0 {
		model = l.models[0]
	}
	return Prediction{
		Prediction: "success",
		Confidence: 0.95,
		ModelUsed:  model,
		Timestamp:  l.now(),
	}, nil
}

func (l *AIML) Predictions() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.predictions
}

func (l *AIML) Report() any {
	return AIMLReport{Predictions: l.Predictions()}
}
