package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chess-mint-rewards/middleware"
	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
	"chess-mint-rewards/services"
)

const (
	aliceID      = "player-alice"
	aliceAddress = "0x00000000000000000000000000000000000a11ce"
	bobID        = "player-bob"
	bobAddress   = "0x0000000000000000000000000000000000000b0b"
)

type testEnv struct {
	db   *gorm.DB
	deps MintDeps
	app  *fiber.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, p := range []models.Player{
		{ID: aliceID, Username: "alice", WalletAddress: aliceAddress},
		{ID: bobID, Username: "bob", WalletAddress: bobAddress},
	} {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed player: %v", err)
		}
	}

	log := zap.NewNop()
	store := services.NewTaskStore(db, nil)
	ledger := services.NewRewardLedger(db, nil)
	players := services.NewPlayerDirectory(db)
	registry := realtime.NewRegistry(log)
	deps := MintDeps{
		Store:      store,
		Gateway:    services.NewMintGateway(store, players, ledger, nil, log),
		Reconciler: services.NewReconciler(store, ledger, registry, log),
		Reclaimer:  services.NewReclaimer(store, nil, 5*time.Minute, 50, nil, log),
		Players:    players,
		Registry:   registry,
		Logger:     log,
	}

	app := fiber.New()
	secured := app.Group("/s", middleware.UserContextMiddleware(log))
	SetupMintRoutes(secured, deps)
	SetupNotificationRoutes(secured, deps)
	milestones := services.NewMilestoneService(db, deps.Gateway, players, nil, log)
	SetupGameRoutes(secured, milestones, ledger, log)

	return &testEnv{db: db, deps: deps, app: app}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any, roles ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	for _, r := range roles {
		req.Header.Add("X-User-Roles", r)
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

type recordingConn struct {
	id   string
	kind realtime.ConnKind

	mu   sync.Mutex
	sent []realtime.ServerMessage
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id, kind: realtime.KindExecutor}
}

func (c *recordingConn) ID() string              { return c.id }
func (c *recordingConn) Kind() realtime.ConnKind { return c.kind }

func (c *recordingConn) Send(msg realtime.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingConn) last(t *testing.T) realtime.ServerMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatalf("no message sent")
	}
	return c.sent[len(c.sent)-1]
}
