package layers

import (
	"context"
	"fmt"
	"time"
)

type TokenizationMetadata struct {
	Blockchain    string `json:"blockchain"`
	TokenStandard string `json:"token_standard"`
}

func (TokenizationMetadata) LayerKind() Kind { return KindRealEstate }

// PropertyToken is the result of tokenizing a property.
type PropertyToken struct {
	TokenID    string    `json:"token_id"`
	PropertyID string    `json:"property_id"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

func (PropertyToken) LayerKind() Kind { return KindRealEstate }

type TokenizationReport struct {
	Tokenized  int64   `json:"tokenized"`
	TotalValue float64 `json:"total_value"`
}

// Tokenization mints "brick" tokens for real estate properties.
type Tokenization struct {
	base
	tokenized  int64
	totalValue float64
}

func NewTokenization(opts ...Option) *Tokenization {
	l := &Tokenization{}
	l.setup(KindRealEstate, opts)
	return l
}

func (l *Tokenization) Initialize(ctx context.Context) (*Descriptor, error) {
	return l.initialize(TokenizationMetadata{Blockchain: "ethereum", TokenStandard: "ERC-721"}), nil
}

// Execute tokenizes the property described by the "id" and "value" fields.
func (l *Tokenization) Execute(ctx context.Context, req Request) (Result, error) {
	value := req.Float("value")

	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokenized++
	l.totalValue += value
	return PropertyToken{
		TokenID:    fmt.Sprintf("BRICK-%08d", l.tokenized),
		PropertyID: req.String("id", ""),
		Value:      value,
		Timestamp:  l.now(),
	}, nil
}

func (l *Tokenization) PropertiesTokenized() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokenized
}

func (l *Tokenization) TotalValue() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalValue
}

func (l *Tokenization) Report() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return TokenizationReport{Tokenized: l.tokenized, TotalValue: l.totalValue}
}
