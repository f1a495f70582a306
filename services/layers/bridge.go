package layers

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/bech32"
)

const brickHRP = "brick"

var supportedLocations = []string{"tokyo", "london"}

type BridgeMetadata struct {
	SupportedLocations        []string `json:"supported_locations"`
	GalacticCalibrationActive bool     `json:"galactic_calibration_active"`
}

func (BridgeMetadata) LayerKind() Kind { return KindBitcoinBridge }

// BrickToken is a BTC amount converted into a location-bound brick.
type BrickToken struct {
	BrickID   string    `json:"brick_id"`
	Location  string    `json:"location"`
	BTCAmount float64   `json:"btc_amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (BrickToken) LayerKind() Kind { return KindBitcoinBridge }

type BridgeReport struct {
	TokenizedBTCBricks        int64    `json:"tokenized_btc_bricks"`
	TotalBTCValue             float64  `json:"total_btc_value"`
	SupportedLocations        []string `json:"supported_locations"`
	GalacticCalibrationActive bool     `json:"galactic_calibration_active"`
}

// BitcoinBridge converts BTC into location-bound brick tokens.
type BitcoinBridge struct {
	base
	bricks   int64
	btcValue float64
}

func NewBitcoinBridge(opts ...Option) *BitcoinBridge {
	l := &BitcoinBridge{}
	l.setup(KindBitcoinBridge, opts)
	return l
}

// SupportedLocations returns the locations a conversion may target.
func SupportedLocations() []string {
	return append([]string(nil), supportedLocations...)
}

func (l *BitcoinBridge) Initialize(ctx context.Context) (*Descriptor, error) {
	return l.initialize(BridgeMetadata{
		SupportedLocations:        SupportedLocations(),
		GalacticCalibrationActive: true,
	}), nil
}

// Execute converts "btc_amount" into a brick at "location". Unsupported
// locations fail with *UnsupportedLocationError and leave counters untouched.
func (l *BitcoinBridge) Execute(ctx context.Context, req Request) (Result, error) {
	location := normalize(req.String("location", ""))
	if !isSupportedLocation(location) {
		return nil, &UnsupportedLocationError{Location: location, Supported: SupportedLocations()}
	}
	amount := req.Float("btc_amount")

	l.mu.Lock()
	defer l.mu.Unlock()
	id, err := encodeBrickID(location, l.bricks+1)
	if err != nil {
		return nil, fmt.Errorf("encode brick id: %w", err)
	}
	l.bricks++
	l.btcValue += amount
	return BrickToken{
		BrickID:   id,
		Location:  location,
		BTCAmount: amount,
		Timestamp: l.now(),
	}, nil
}

func (l *BitcoinBridge) TokenizedBricks() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bricks
}

func (l *BitcoinBridge) Report() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return BridgeReport{
		TokenizedBTCBricks:        l.bricks,
		TotalBTCValue:             l.btcValue,
		SupportedLocations:        SupportedLocations(),
		GalacticCalibrationActive: true,
	}
}

func isSupportedLocation(location string) bool {
	for _, s := range supportedLocations {
		if s == location {
			return true
		}
	}
	return false
}

// encodeBrickID renders "<location>-<seq>" as a bech32 string with the
// "brick" prefix.
func encodeBrickID(location string, seq int64) (string, error) {
	data, err := bech32.ConvertBits([]byte(fmt.Sprintf("%s-%08d", location, seq)), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(brickHRP, data)
}

// DecodeBrickID reverses encodeBrickID.
func DecodeBrickID(id string) (string, error) {
	hrp, data, err := bech32.Decode(id)
	if err != nil {
		return "", err
	}
	if hrp != brickHRP {
		return "", fmt.Errorf("unexpected hrp %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
