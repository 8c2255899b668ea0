package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chess-mint-rewards/models"
)

// RemotePlayer matches one entry of the sync service response.
type RemotePlayer struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type GetPlayerChangesResponse struct {
	Players []RemotePlayer `json:"players"`
}

// PlayerSyncWorker mirrors players and their wallet addresses from the sync
// service into the local players table.
type PlayerSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewPlayerSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string, interval time.Duration, logger *zap.Logger) *PlayerSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PlayerSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (w *PlayerSyncWorker) Start(ctx context.Context) {
	w.logger.Info("starting player sync worker", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *PlayerSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.logger.Warn("initial player sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.logger.Error("player sync failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.logger.Info("player sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls changes since the newest local row and upserts them.
func (w *PlayerSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.lastSyncTime(ctx)
	if err != nil {
		return 0, err
	}
	players, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(players) == 0 {
		return 0, nil
	}

	upserted := 0
	for _, remote := range players {
		if remote.ExternalID == "" {
			continue
		}
		local := models.Player{
			ID:            remote.ExternalID,
			Username:      remote.Username,
			WalletAddress: models.NormalizeAddress(remote.WalletAddress),
			IsBanned:      remote.AccountStatus == "suspended" || remote.AccountStatus == "banned",
			CreatedAt:     remote.CreatedAt,
			UpdatedAt:     remote.UpdatedAt,
		}
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "wallet_address", "is_banned", "updated_at",
			}),
		}).Create(&local).Error; err != nil {
			w.logger.Warn("failed to upsert player",
				zap.String("external_id", remote.ExternalID), zap.Error(err))
			continue
		}
		upserted++
	}

	w.logger.Info("players synced",
		zap.Int("received", len(players)),
		zap.Int("upserted", upserted),
		zap.Time("since", since))
	return upserted, nil
}

func (w *PlayerSyncWorker) lastSyncTime(ctx context.Context) (time.Time, error) {
	var latest models.Player
	err := w.db.WithContext(ctx).Unscoped().Order("updated_at DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest.UpdatedAt, nil
}

func (w *PlayerSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemotePlayer, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, body)
	}

	var out GetPlayerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return out.Players, nil
}
