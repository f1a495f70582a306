package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestNilPool(t *testing.T) {
	ctx := context.Background()
	if _, err := Migrate(ctx, nil); !errors.Is(err, ErrNilPool) {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := Gorm(nil); !errors.Is(err, ErrNilPool) {
		t.Fatalf("Gorm() error = %v", err)
	}
	if err := Ping(ctx, nil); !errors.Is(err, ErrNilPool) {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatal("pgx.ErrNoRows not recognised")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatal("unrelated error recognised as no rows")
	}
}
