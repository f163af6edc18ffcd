// workers/participant_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"streak-tracker/models"
	"streak-tracker/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches one user in the profile service response.
type RemoteProfile struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FirstName     *string   `json:"first_name,omitempty"`
	LastName      *string   `json:"last_name,omitempty"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName prefers "first last" and falls back to the username.
func (p RemoteProfile) DisplayName() string {
	var parts []string
	for _, s := range []*string{p.FirstName, p.LastName} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	if len(parts) == 0 {
		return p.Username
	}
	return strings.Join(parts, " ")
}

// GetUserChangesResponse is the top-level structure of the profile service response.
type GetUserChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ParticipantSyncWorker mirrors new and changed users from the profile service
// into participants. Only identity columns are written; streak and points
// columns are owned by the submission path.
type ParticipantSyncWorker struct {
	db           *gorm.DB
	log          *zap.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client

	mu    sync.Mutex
	since time.Time
}

func NewParticipantSyncWorker(db *gorm.DB, logger *zap.Logger, baseURL, endpointPath, serviceToken string, interval time.Duration) *ParticipantSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ParticipantSyncWorker{
		db:           db,
		log:          logger,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

// Start runs the sync loop in the background until ctx is done.
func (w *ParticipantSyncWorker) Start(ctx context.Context) {
	w.log.Info("starting participant sync worker",
		zap.String("base_url", w.baseURL), zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *ParticipantSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("initial participant sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("participant sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.log.Info("participant sync worker stopped")
			return
		}
	}
}

// SyncOnce fetches changes since the last seen update and upserts them. It
// returns how many participants were written.
func (w *ParticipantSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	users, err := w.fetch(ctx, w.since)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	upserted, failed := 0, 0
	latest := w.since
	for _, remote := range users {
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
		if remote.ExternalID == "" {
			continue
		}
		p := models.Participant{
			ID:       remote.ExternalID,
			FullName: remote.DisplayName(),
			Email:    remote.Email,
			Role:     models.RoleParticipant,
		}
		if !remote.CreatedAt.IsZero() {
			p.CreatedAt = remote.CreatedAt
		}

		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "updated_at"}),
		}).Create(&p).Error
		if err != nil {
			failed++
			w.log.Warn("failed to upsert participant",
				zap.String("external_id", remote.ExternalID), zap.Error(err))
			continue
		}
		upserted++
	}

	// the watermark only moves when the whole batch landed
	if failed == 0 {
		w.since = latest
	}
	w.log.Info("participant sync batch done",
		zap.Int("received", len(users)),
		zap.Int("upserted", upserted),
		zap.Int("failed", failed),
		zap.Time("since", w.since))
	return upserted, nil
}

func (w *ParticipantSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer utils.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sync service non-200 response: %d %s", resp.StatusCode, utils.ReadErrorBody(resp.Body))
	}

	var response GetUserChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return response.Users, nil
}
