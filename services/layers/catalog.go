package layers

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllKinds lists every layer kind in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindAIML,
		KindRealEstate,
		KindCRMAnalytics,
		KindZakat,
		KindNFTAchievement,
		KindAuction,
		KindBitcoinBridge,
	}
}

// DefaultDeliverableKinds are the kinds that receive generated artifacts.
func DefaultDeliverableKinds() []Kind {
	return []Kind{
		KindAIML,
		KindRealEstate,
		KindCRMAnalytics,
		KindZakat,
		KindNFTAchievement,
	}
}

// ParseKind accepts either a kind value or its state-file key.
func ParseKind(raw string) (Kind, error) {
	name := normalize(raw)
	for _, k := range AllKinds() {
		if name == string(k) || name == k.StateKey() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// ParseKinds parses a list of kinds, skipping blanks and duplicates.
func ParseKinds(raw []string) ([]Kind, error) {
	out := make([]Kind, 0, len(raw))
	seen := make(map[Kind]struct{}, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		k, err := ParseKind(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// IntersectKinds returns the members of kinds present in allowed, keeping
// the order of kinds.
func IntersectKinds(kinds, allowed []Kind) []Kind {
	set := make(map[Kind]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := set[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// RequireKinds fails with ErrUnknownKind for the first member of kinds that
// is not in allowed.
func RequireKinds(kinds, allowed []Kind) error {
	set := make(map[Kind]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	for _, k := range kinds {
		if _, ok := set[k]; !ok {
			return fmt.Errorf("%w: %q is not a configured layer", ErrUnknownKind, k)
		}
	}
	return nil
}

// New constructs the layer for kind.
func New(kind Kind, opts ...Option) (Layer, error) {
	switch kind {
	case KindAIML:
		return NewAIML(opts...), nil
	case KindRealEstate:
		return NewTokenization(opts...), nil
	case KindCRMAnalytics:
		return NewAnalytics(opts...), nil
	case KindZakat:
		return NewZakat(opts...), nil
	case KindNFTAchievement:
		return NewNFTAchievement(opts...), nil
	case KindAuction:
		return NewAuction(opts...), nil
	case KindBitcoinBridge:
		return NewBitcoinBridge(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// SampleRequest is the fixed request each layer receives during the unified
// operations phase.
func SampleRequest(kind Kind) Request {
	switch kind {
	case KindAIML:
		return Request{"input": "property_value_prediction"}
	case KindRealEstate:
		return Request{"id": "PROP-001", "value": 500000.0, "location": "Dubai"}
	case KindCRMAnalytics:
		return Request{"architect_id": "ARCH-12345", "type": "project_completion", "score": 95.0}
	case KindZakat:
		return Request{"total_wealth": 100000.0, "currency": "USD"}
	case KindNFTAchievement:
		return Request{"type": "master_architect", "recipient": "ARCH-12345"}
	case KindAuction:
		return Request{"asset_id": "ASSET-001", "reserve_price": 250000.0}
	case KindBitcoinBridge:
		return Request{"location": "tokyo", "btc_amount": 1.5}
	default:
		return Request{}
	}
}

// Catalog selects and versions the layers of a run. It is loaded from YAML.
type Catalog struct {
	Layers      []CatalogEntry `yaml:"layers"`
	Deliverable []string       `yaml:"deliverable"`
}

// CatalogEntry configures one layer.
type CatalogEntry struct {
	Kind    string `yaml:"kind"`
	Version string `yaml:"version,omitempty"`
}

// DefaultCatalog enables every layer at the default version.
func DefaultCatalog() Catalog {
	c := Catalog{}
	for _, k := range AllKinds() {
		c.Layers = append(c.Layers, CatalogEntry{Kind: string(k)})
	}
	for _, k := range DefaultDeliverableKinds() {
		c.Deliverable = append(c.Deliverable, string(k))
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Layers) == 0 {
		c.Layers = DefaultCatalog().Layers
	}
	return c, nil
}

// Build constructs the catalog's layers in declaration order.
func (c Catalog) Build(opts ...Option) ([]Layer, error) {
	out := make([]Layer, 0, len(c.Layers))
	seen := make(map[Kind]struct{}, len(c.Layers))
	for _, entry := range c.Layers {
		kind, err := ParseKind(entry.Kind)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[kind]; ok {
			return nil, fmt.Errorf("layer %q listed twice", kind)
		}
		seen[kind] = struct{}{}
		layerOpts := append([]Option{WithVersion(entry.Version)}, opts...)
		l, err := New(kind, layerOpts...)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Kinds returns the configured layer kinds. A catalog without layers stands
// for every kind, as LoadCatalog does.
func (c Catalog) Kinds() ([]Kind, error) {
	if len(c.Layers) == 0 {
		return AllKinds(), nil
	}
	raw := make([]string, 0, len(c.Layers))
	for _, entry := range c.Layers {
		raw = append(raw, entry.Kind)
	}
	return ParseKinds(raw)
}

// DeliverableKinds parses the deliverable set. Without one, the defaults
// that are also configured layers are used. Listing a kind that is not a
// configured layer is an error.
func (c Catalog) DeliverableKinds() ([]Kind, error) {
	configured, err := c.Kinds()
	if err != nil {
		return nil, err
	}
	if len(c.Deliverable) == 0 {
		return IntersectKinds(DefaultDeliverableKinds(), configured), nil
	}
	kinds, err := ParseKinds(c.Deliverable)
	if err != nil {
		return nil, err
	}
	if err := RequireKinds(kinds, configured); err != nil {
		return nil, err
	}
	return kinds, nil
}
