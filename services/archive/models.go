package archive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"omniversal/services/kernel"
)

type runModel struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Status     string            `gorm:"column:status;type:text"`
	StartedAt  time.Time         `gorm:"column:started_at;type:timestamptz"`
	FinishedAt *time.Time        `gorm:"column:finished_at;type:timestamptz"`
	Summary    datatypes.JSONMap `gorm:"column:summary;type:jsonb"`
}

func (runModel) TableName() string { return "kernel_runs" }

type snapshotModel struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RunID               uuid.UUID `gorm:"column:run_id;type:uuid"`
	TotalArchitects     int64     `gorm:"column:total_architects"`
	ActiveLayers        int       `gorm:"column:active_layers"`
	TotalArtifacts      int64     `gorm:"column:total_artifacts"`
	NFTMinted           int64     `gorm:"column:nft_minted"`
	ZakatProcessed      float64   `gorm:"column:zakat_processed"`
	PropertiesTokenized int64     `gorm:"column:properties_tokenized"`
	AIPredictions       int64     `gorm:"column:ai_predictions"`
	TakenAt             time.Time `gorm:"column:taken_at;type:timestamptz"`
}

func (snapshotModel) TableName() string { return "dashboard_snapshots" }

const (
	RunStatusRunning = "running"
)

// Run is an archived kernel run.
type Run struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	Status     string         `db:"status" json:"status"`
	StartedAt  time.Time      `db:"started_at" json:"started_at"`
	FinishedAt *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
	Summary    map[string]any `db:"summary" json:"summary,omitempty"`
}

// Snapshot is an archived dashboard snapshot tagged with its run.
type Snapshot struct {
	RunID uuid.UUID `json:"run_id"`
	kernel.DashboardSnapshot
}

type snapshotRow struct {
	ID                  uuid.UUID `db:"id"`
	RunID               uuid.UUID `db:"run_id"`
	TotalArchitects     int64     `db:"total_architects"`
	ActiveLayers        int       `db:"active_layers"`
	TotalArtifacts      int64     `db:"total_artifacts"`
	NFTMinted           int64     `db:"nft_minted"`
	ZakatProcessed      float64   `db:"zakat_processed"`
	PropertiesTokenized int64     `db:"properties_tokenized"`
	AIPredictions       int64     `db:"ai_predictions"`
	TakenAt             time.Time `db:"taken_at"`
}

func toSnapshotModel(runID uuid.UUID, s kernel.DashboardSnapshot) snapshotModel {
	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return snapshotModel{
		ID:                  id,
		RunID:               runID,
		TotalArchitects:     s.TotalArchitects,
		ActiveLayers:        s.ActiveLayers,
		TotalArtifacts:      s.TotalArtifacts,
		NFTMinted:           s.NFTMinted,
		ZakatProcessed:      s.ZakatProcessed,
		PropertiesTokenized: s.PropertiesTokenized,
		AIPredictions:       s.AIPredictions,
		TakenAt:             s.Timestamp.UTC(),
	}
}

func (r snapshotRow) toSnapshot() Snapshot {
	return Snapshot{
		RunID: r.RunID,
		DashboardSnapshot: kernel.DashboardSnapshot{
			ID:                  r.ID,
			TotalArchitects:     r.TotalArchitects,
			ActiveLayers:        r.ActiveLayers,
			TotalArtifacts:      r.TotalArtifacts,
			NFTMinted:           r.NFTMinted,
			ZakatProcessed:      r.ZakatProcessed,
			PropertiesTokenized: r.PropertiesTokenized,
			AIPredictions:       r.AIPredictions,
			Timestamp:           r.TakenAt,
		},
	}
}

func toJSONMap(src map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range src {
		out[k] = v
	}
	return out
}
