package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// KernelRun is one pass of the kernel through its phases.
type KernelRun struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Status     string            `gorm:"type:text;not null;index"`
	StartedAt  time.Time         `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time        `gorm:"type:timestamptz"`
	Summary    datatypes.JSONMap `gorm:"type:jsonb"`
}

type DashboardSnapshot struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID               uuid.UUID `gorm:"type:uuid;not null;index"`
	TotalArchitects     int64     `gorm:"type:bigint;not null"`
	ActiveLayers        int       `gorm:"type:integer;not null"`
	TotalArtifacts      int64     `gorm:"type:bigint;not null"`
	NFTMinted           int64     `gorm:"column:nft_minted;type:bigint;not null"`
	ZakatProcessed      float64   `gorm:"type:double precision;not null"`
	PropertiesTokenized int64     `gorm:"type:bigint;not null"`
	AIPredictions       int64     `gorm:"column:ai_predictions;type:bigint;not null"`
	TakenAt             time.Time `gorm:"type:timestamptz;not null;index"`
	Run                 KernelRun `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func openGorm(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(&KernelRun{}, &DashboardSnapshot{}); err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().CreateConstraint(&DashboardSnapshot{}, "Run")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&DashboardSnapshot{}, &KernelRun{})
}
