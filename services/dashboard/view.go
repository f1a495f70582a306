package dashboard

import (
	"fmt"
	"time"

	"omniversal/pkg/render"
	"omniversal/services/kernel"
)

// View is the data the dashboard templates render.
type View struct {
	Status             string
	Mode               string
	Timestamp          string
	Layers             []LayerLine
	Deployments        int64
	ArtifactsDelivered int64
	ActiveLayers       int
	Details            []DetailBlock
}

// LayerLine is one headline metric in the layer section.
type LayerLine struct {
	Name    string
	Caption string
	Value   string
}

type DetailBlock struct {
	Title string
	Items []DetailItem
}

type DetailItem struct {
	Label string
	Value string
}

// BuildView flattens a state document into template data. Missing sections
// render as zero values.
func BuildView(st kernel.State, at time.Time) View {
	v := View{
		Status:    orDefault(st.Status, "unknown"),
		Mode:      orDefault(st.Mode, "n/a"),
		Timestamp: at.Format("2006-01-02 15:04:05"),
	}
	if st.Systems.Deployments != nil {
		v.Deployments = *st.Systems.Deployments
	}
	if st.Systems.ArtifactsDelivered != nil {
		v.ArtifactsDelivered = *st.Systems.ArtifactsDelivered
	}
	if m := st.Dashboard.CurrentMetrics; m != nil {
		v.ActiveLayers = m.ActiveLayers
	}

	l := st.Layers
	if r := l.AIML; r != nil {
		v.Layers = append(v.Layers, LayerLine{"Tatras AI/ML Layer", "Predictions processed", render.Count(r.Predictions)})
		v.Details = append(v.Details, DetailBlock{"Tatras AI/ML", []DetailItem{
			{"Predictions", render.Count(r.Predictions)},
		}})
	}
	if r := l.RealEstate; r != nil {
		v.Layers = append(v.Layers, LayerLine{"Real Estate Tokenization", "Properties tokenized", render.Count(r.Tokenized)})
		v.Details = append(v.Details, DetailBlock{"Real Estate Tokenization", []DetailItem{
			{"Properties", render.Count(r.Tokenized)},
			{"Total Value", render.Money(r.TotalValue)},
		}})
	}
	if r := l.CRMAnalytics; r != nil {
		v.Layers = append(v.Layers, LayerLine{"CRM Analytics (Architects)", "Total architects in system", render.Count(r.TotalArchitects)})
		v.Details = append(v.Details, DetailBlock{"CRM Analytics", []DetailItem{
			{"Architects", render.Count(r.TotalArchitects)},
			{"Analytics Processed", render.Count(r.AnalyticsProcessed)},
		}})
	}
	if r := l.Zakat; r != nil {
		v.Layers = append(v.Layers, LayerLine{"Zakat Automation", "Total Zakat processed", render.Money(r.TotalProcessed)})
		v.Details = append(v.Details, DetailBlock{"Zakat Automation", []DetailItem{
			{"Total Processed", render.Money(r.TotalProcessed)},
			{"Calculations", render.Count(r.Calculations)},
		}})
	}
	if r := l.NFT; r != nil {
		v.Layers = append(v.Layers, LayerLine{"NFT Achievement Minting", "NFTs minted", render.Count(r.Minted)})
		v.Details = append(v.Details, DetailBlock{"NFT Achievement", []DetailItem{
			{"NFTs Minted", render.Count(r.Minted)},
			{"Achievements Tracked", render.Count(r.Achievements)},
		}})
	}
	if r := l.Auction; r != nil {
		v.Layers = append(v.Layers, LayerLine{"Auction Preparation", "Assets prepared", render.Count(r.AssetsPrepared)})
		v.Details = append(v.Details, DetailBlock{"Auction Preparation", []DetailItem{
			{"Assets Prepared", render.Count(r.AssetsPrepared)},
			{"Total Liquidity", render.Money(r.TotalLiquidity)},
			{"Calibration Precision", fmt.Sprintf("%.6f", r.CalibrationPrecision)},
		}})
	}
	if r := l.BitcoinBridge; r != nil {
		v.Layers = append(v.Layers, LayerLine{"Helix Bitcoin Bridge", "BTC bricks tokenized", render.Count(r.TokenizedBTCBricks)})
		v.Details = append(v.Details, DetailBlock{"Helix Bitcoin Bridge", []DetailItem{
			{"BTC Bricks", render.Count(r.TokenizedBTCBricks)},
			{"Total BTC", fmt.Sprintf("%.8f", r.TotalBTCValue)},
		}})
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
