package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
)

const (
	aliceID      = "player-alice"
	aliceAddress = "0x00000000000000000000000000000000000a11ce"
	bobID        = "player-bob"
	bobAddress   = "0x0000000000000000000000000000000000000b0b"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPlayer(t *testing.T, db *gorm.DB, id, address string) {
	t.Helper()
	player := models.Player{ID: id, Username: id, WalletAddress: address}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("seed player %s: %v", id, err)
	}
}

// harness wires the services against one sqlite database and a fake clock.
type harness struct {
	db       *gorm.DB
	clock    *clockwork.FakeClock
	store    *TaskStore
	ledger   *RewardLedger
	players  *PlayerDirectory
	rooms    *fakeRooms
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(epoch)
	seedPlayer(t, db, aliceID, aliceAddress)
	seedPlayer(t, db, bobID, bobAddress)
	return &harness{
		db:       db,
		clock:    clock,
		store:    NewTaskStore(db, clock),
		ledger:   NewRewardLedger(db, clock),
		players:  NewPlayerDirectory(db),
		rooms:    newFakeRooms(),
		notifier: &fakeNotifier{},
	}
}

func (h *harness) enqueue(t *testing.T, playerID, address string, reward models.RewardType) *models.MintTask {
	t.Helper()
	task, err := h.store.CreatePending(context.Background(), NewMintTask{
		PlayerID:      playerID,
		PlayerAddress: address,
		RewardType:    reward,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

type fakeRooms struct {
	mu        sync.Mutex
	executors map[string]int
	pushes    []realtime.MintNow
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{executors: map[string]int{}}
}

func (r *fakeRooms) connect(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[models.NormalizeAddress(address)]++
}

func (r *fakeRooms) LiveExecutors(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executors[models.NormalizeAddress(address)]
}

func (r *fakeRooms) PushMintNow(address string, msg realtime.MintNow) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.executors[models.NormalizeAddress(address)]
	if n > 0 {
		r.pushes = append(r.pushes, msg)
	}
	return n
}

func (r *fakeRooms) ExecutorAddresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for a, n := range r.executors {
		if n > 0 {
			out = append(out, a)
		}
	}
	return out
}

func (r *fakeRooms) pushed() []realtime.MintNow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.MintNow(nil), r.pushes...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []realtime.MintCompletedNotice
}

func (n *fakeNotifier) NotifyMintCompleted(_ context.Context, _ string, notice realtime.MintCompletedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type recordingScheduler struct {
	mu     sync.Mutex
	tasks  []string
	sweeps []string
}

func (s *recordingScheduler) Schedule(task *models.MintTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task.ID)
}

func (s *recordingScheduler) ScheduleSweep(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps = append(s.sweeps, address)
}

func nopLogger() *zap.Logger { return zap.NewNop() }
