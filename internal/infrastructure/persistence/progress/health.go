package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// HealthHistoryRepository implements health.HistoryRepository.
type HealthHistoryRepository struct {
	gw *blob.Gateway
}

// NewHealthHistoryRepository creates the repository.
func NewHealthHistoryRepository(gw *blob.Gateway) *HealthHistoryRepository {
	return &HealthHistoryRepository{gw: gw}
}

// Load reads the rolling history.
func (r *HealthHistoryRepository) Load(ctx context.Context, userID string) ([]health.DailyMetrics, error) {
	h, err := load(ctx, r.gw, "health", kv.UserKey(userID, kv.SubsystemHealthHistory), SchemaHealthHistory,
		validateHistory)
	if err != nil {
		return nil, err
	}
	return *h, nil
}

// Save writes the rolling history, trimmed to the retention window.
func (r *HealthHistoryRepository) Save(ctx context.Context, userID string, history []health.DailyMetrics) error {
	trimmed := health.Recent(history, health.HistoryRetentionDays)
	return r.gw.Save(ctx, kv.UserKey(userID, kv.SubsystemHealthHistory), SchemaHealthHistory, trimmed)
}

// Delete removes the rolling history.
func (r *HealthHistoryRepository) Delete(ctx context.Context, userID string) error {
	return r.gw.Remove(ctx, kv.UserKey(userID, kv.SubsystemHealthHistory))
}

func validateHistory(h *[]health.DailyMetrics) error {
	for _, d := range *h {
		if !timeutil.IsValidDateKey(d.Date) || d.Steps < 0 {
			return shared.NewDomainError("health", "Validate", shared.ErrCorrupted,
				fmt.Sprintf("invalid history day %q", d.Date))
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// Directory implements health.UserDirectory as a single sorted blob.
// Updates are serialized within the process.
type Directory struct {
	gw *blob.Gateway
	mu sync.Mutex
}

// NewDirectory creates the directory.
func NewDirectory(gw *blob.Gateway) *Directory {
	return &Directory{gw: gw}
}

// List returns known user ids in sorted order. A corrupt directory reads as empty.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	ids, err := d.read(ctx)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Add registers userID.
func (d *Directory) Add(ctx context.Context, userID string) error {
	if userID == "" {
		return shared.ErrEmptyUserID
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, err := d.read(ctx)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(ids, userID)
	if i < len(ids) && ids[i] == userID {
		return nil
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = userID
	return d.gw.Save(ctx, kv.DirectoryKey, SchemaDirectory, ids)
}

// Remove unregisters userID.
func (d *Directory) Remove(ctx context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, err := d.read(ctx)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(ids, userID)
	if i == len(ids) || ids[i] != userID {
		return nil
	}
	ids = append(ids[:i], ids[i+1:]...)
	return d.gw.Save(ctx, kv.DirectoryKey, SchemaDirectory, ids)
}

func (d *Directory) read(ctx context.Context) ([]string, error) {
	var ids []string
	status, err := d.gw.Load(ctx, kv.DirectoryKey, SchemaDirectory, &ids, nil)
	switch status {
	case blob.StatusFound:
		sort.Strings(ids)
		return ids, nil
	case blob.StatusAbsent, blob.StatusCorrupt:
		return []string{}, nil
	default:
		return nil, err
	}
}
