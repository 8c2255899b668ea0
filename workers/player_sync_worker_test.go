package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chess-mint-rewards/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Player{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSyncOnceUpsertsPlayers(t *testing.T) {
	db := newTestDB(t)
	updated := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var gotToken, gotSince string
	wallet := "0x00000000000000000000000000000000000A11CE"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Service-Token")
		gotSince = r.URL.Query().Get("since")
		_ = json.NewEncoder(w).Encode(GetPlayerChangesResponse{Players: []RemotePlayer{
			{ExternalID: "p1", Username: "alice", WalletAddress: wallet, AccountStatus: "active", CreatedAt: updated, UpdatedAt: updated},
			{ExternalID: "p2", Username: "mallory", AccountStatus: "suspended", CreatedAt: updated, UpdatedAt: updated},
			{Username: "no-id"},
		}})
	}))
	defer srv.Close()

	w := NewPlayerSyncWorker(db, srv.URL, "/api/v1/public/players", "svc-token", time.Minute, zap.NewNop())
	n, err := w.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 upserts, got %d", n)
	}
	if gotToken != "svc-token" || gotSince != "1970-01-01T00:00:00Z" {
		t.Fatalf("unexpected request: token=%q since=%q", gotToken, gotSince)
	}

	var alice models.Player
	if err := db.First(&alice, "id = ?", "p1").Error; err != nil {
		t.Fatalf("load alice: %v", err)
	}
	if alice.WalletAddress != "0x00000000000000000000000000000000000a11ce" {
		t.Fatalf("wallet should be normalized, got %s", alice.WalletAddress)
	}
	var mallory models.Player
	db.First(&mallory, "id = ?", "p2")
	if !mallory.IsBanned {
		t.Fatalf("suspended account should be banned")
	}

	// Next sync asks only for changes after the newest local row.
	if _, err := w.SyncOnce(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if gotSince != updated.Format(time.RFC3339) {
		t.Fatalf("expected incremental since, got %q", gotSince)
	}
}

func TestSyncOnceSurfacesServiceErrors(t *testing.T) {
	db := newTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewPlayerSyncWorker(db, srv.URL, "/players", "t", time.Minute, zap.NewNop())
	if _, err := w.SyncOnce(context.Background()); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}

func TestStartReturnsAndSyncsInBackground(t *testing.T) {
	db := newTestDB(t)
	synced := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GetPlayerChangesResponse{})
		select {
		case synced <- struct{}{}:
		default:
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewPlayerSyncWorker(db, srv.URL, "/api/v1/public/players", "svc-token", time.Hour, zap.NewNop())
	returned := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatalf("Start should not block")
	}
	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an initial sync after Start")
	}
}
