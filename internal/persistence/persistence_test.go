package persistence

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/config"
)

func TestMigrationsSortedAndComplete(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("migrations = %d, want 2", len(migrations))
	}
	if migrations[0].Name != "001_drafts.sql" || migrations[1].Name != "002_history.sql" {
		t.Errorf("order = %s, %s", migrations[0].Name, migrations[1].Name)
	}
	all := migrations[0].SQL + migrations[1].SQL
	for _, table := range []string{"drafts", "status_done", "status_history", "input_history"} {
		if !strings.Contains(all, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("missing table %s", table)
		}
	}
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, zap.NewNop()); err != nil {
		t.Errorf("RunMigrations(nil) = %v, want nil", err)
	}
}

func TestNewPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if pg.PoolHandle() != nil {
		t.Error("expected nil pool without DSN")
	}
	pg.Close()
}

func TestNewSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.db")
	s, err := NewSQLite(config.SQLiteConfig{Path: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	if err := s.DB.Exec("SELECT 1").Error; err != nil {
		t.Errorf("SELECT 1: %v", err)
	}
}

func TestNewSQLiteRequiresPath(t *testing.T) {
	if _, err := NewSQLite(config.SQLiteConfig{}, zap.NewNop()); err == nil {
		t.Fatal("expected error without path")
	}
}

func TestRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	defer r.Close()
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	var missing *Redis
	if err := missing.Ping(context.Background()); err == nil {
		t.Error("expected error for nil client")
	}
}
