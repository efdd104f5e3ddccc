package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/cliparr/internal/models"
)

// RunRepository persists job history rows.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts one finished job run.
func (r *RunRepository) Record(ctx context.Context, run *models.JobRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("recording job run: %w", err)
	}
	return nil
}

// LatestByJobID retrieves the most recent run for a job id, or nil when the
// job never ran.
func (r *RunRepository) LatestByJobID(ctx context.Context, jobID string) (*models.JobRun, error) {
	var run models.JobRun
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest run by job ID: %w", err)
	}
	return &run, nil
}

// ListRecent retrieves runs newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error) {
	if limit <= 0 {
		limit = 100
	}
	var runs []*models.JobRun
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing job runs: %w", err)
	}
	return runs, nil
}

// CountByStatus returns the number of runs per terminal status.
func (r *RunRepository) CountByStatus(ctx context.Context) (map[models.JobRunStatus]int64, error) {
	type row struct {
		Status models.JobRunStatus
		N      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.JobRun{}).
		Select("status, count(*) as n").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting runs by status: %w", err)
	}
	out := make(map[models.JobRunStatus]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.N
	}
	return out, nil
}

// PruneOlderThan hard-deletes history rows created before the cutoff and
// returns how many went.
func (r *RunRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&models.JobRun{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning job runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
