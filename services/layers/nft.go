package layers

import (
	"context"
	"fmt"
	"time"
)

type NFTMetadata struct {
	Blockchain    string `json:"blockchain"`
	TokenStandard string `json:"token_standard"`
}

func (NFTMetadata) LayerKind() Kind { return KindNFTAchievement }

// AchievementNFT is a minted achievement token.
type AchievementNFT struct {
	NFTID           string    `json:"nft_id"`
	AchievementType string    `json:"achievement_type"`
	Recipient       string    `json:"recipient"`
	MetadataURI     string    `json:"metadata_uri"`
	Timestamp       time.Time `json:"timestamp"`
}

func (AchievementNFT) LayerKind() Kind { return KindNFTAchievement }

type NFTReport struct {
	Minted       int64 `json:"minted"`
	Achievements int64 `json:"achievements"`
}

// NFTAchievement mints NFTs for architect achievements.
type NFTAchievement struct {
	base
	minted       int64
	achievements int64
}

func NewNFTAchievement(opts ...Option) *NFTAchievement {
	l := &NFTAchievement{}
	l.setup(KindNFTAchievement, opts)
	return l
}

func (l *NFTAchievement) Initialize(ctx context.Context) (*Descriptor, error) {
	return l.initialize(NFTMetadata{Blockchain: "polygon", TokenStandard: "ERC-1155"}), nil
}

func (l *NFTAchievement) Execute(ctx context.Context, req Request) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minted++
	l.achievements++
	id := fmt.Sprintf("ACHIEVE-%08d", l.minted)
	return AchievementNFT{
		NFTID:           id,
		AchievementType: req.String("type", ""),
		Recipient:       req.String("recipient", ""),
		MetadataURI:     "ipfs://achievements/" + id,
		Timestamp:       l.now(),
	}, nil
}

func (l *NFTAchievement) NFTsMinted() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minted
}

func (l *NFTAchievement) Report() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return NFTReport{Minted: l.minted, Achievements: l.achievements}
}
