package layers

import (
	"context"
	"fmt"
	"time"
)

// CalibrationPrecision scales reserve prices into available liquidity.
const CalibrationPrecision = 0.999999

type AuctionMetadata struct {
	CalibrationPrecision float64 `json:"calibration_precision"`
	CosmicHelixActive    bool    `json:"cosmic_helix_active"`
}

func (AuctionMetadata) LayerKind() Kind { return KindAuction }

// AuctionLot is a prepared asset ready for auction.
type AuctionLot struct {
	LotID        string    `json:"lot_id"`
	AssetID      string    `json:"asset_id"`
	ReservePrice float64   `json:"reserve_price"`
	Liquidity    float64   `json:"liquidity"`
	Timestamp    time.Time `json:"timestamp"`
}

func (AuctionLot) LayerKind() Kind { return KindAuction }

type AuctionReport struct {
	AssetsPrepared       int64   `json:"assets_prepared"`
	TotalLiquidity       float64 `json:"total_liquidity"`
	CalibrationPrecision float64 `json:"calibration_precision"`
	CosmicHelixActive    bool    `json:"cosmic_helix_active"`
}

// Auction prepares assets for auction.
type Auction struct {
	base
	prepared  int64
	liquidity float64
}

func NewAuction(opts ...Option) *Auction {
	l := &Auction{}
	l.setup(KindAuction, opts)
	return l
}

func (l *Auction) Initialize(ctx context.Context) (*Descriptor, error) {
	return l.initialize(AuctionMetadata{CalibrationPrecision: CalibrationPrecision, CosmicHelixActive: true}), nil
}

// Execute prepares the asset named by "asset_id" at "reserve_price".
func (l *Auction) Execute(ctx context.Context, req Request) (Result, error) {
	reserve := req.Float("reserve_price")
	liquidity := reserve * CalibrationPrecision

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prepared++
	l.liquidity += liquidity
	return AuctionLot{
		LotID:        fmt.Sprintf("LOT-%08d", l.prepared),
		AssetID:      req.String("asset_id", ""),
		ReservePrice: reserve,
		Liquidity:    liquidity,
		Timestamp:    l.now(),
	}, nil
}

func (l *Auction) AssetsPrepared() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prepared
}

func (l *Auction) Report() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return AuctionReport{
		AssetsPrepared:       l.prepared,
		TotalLiquidity:       l.liquidity,
		CalibrationPrecision: CalibrationPrecision,
		CosmicHelixActive:    true,
	}
}
