package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/cliparr/internal/models"
)

// ClipRepository persists rendered clip rows.
type ClipRepository struct {
	db *gorm.DB
}

// NewClipRepository creates a new ClipRepository.
func NewClipRepository(db *gorm.DB) *ClipRepository {
	return &ClipRepository{db: db}
}

// Record inserts the clip, or refreshes the existing row when the same
// filename was rendered before (job re-runs overwrite their outputs).
func (r *ClipRepository) Record(ctx context.Context, clip *models.Clip) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "filename"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"job_id", "source", "start", "end", "duration", "layout",
			"template", "score", "text", "thumbnail", "size_bytes", "updated_at",
		}),
	}).Create(clip).Error; err != nil {
		return fmt.Errorf("recording clip: %w", err)
	}
	return nil
}

// GetByFilename retrieves one clip row, or nil when unknown.
func (r *ClipRepository) GetByFilename(ctx context.Context, filename string) (*models.Clip, error) {
	var clip models.Clip
	if err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&clip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting clip by filename: %w", err)
	}
	return &clip, nil
}

// GetByJobID retrieves all clips produced by one job, oldest first.
func (r *ClipRepository) GetByJobID(ctx context.Context, jobID string) ([]*models.Clip, error) {
	var clips []*models.Clip
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("filename ASC").
		Find(&clips).Error; err != nil {
		return nil, fmt.Errorf("getting clips by job ID: %w", err)
	}
	return clips, nil
}

// ListRecent retrieves clips newest first with pagination, plus the total
// row count.
func (r *ClipRepository) ListRecent(ctx context.Context, offset, limit int) ([]*models.Clip, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Clip{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting clips: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	var clips []*models.Clip
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&clips).Error; err != nil {
		return nil, 0, fmt.Errorf("listing clips: %w", err)
	}
	return clips, total, nil
}

// DeleteByFilename removes the row for a clip file, typically after the
// retention sweep deleted the file itself. Hard delete: the filename holds
// a unique index and a re-render must be able to reuse it.
func (r *ClipRepository) DeleteByFilename(ctx context.Context, filename string) error {
	if err := r.db.WithContext(ctx).Unscoped().
		Where("filename = ?", filename).
		Delete(&models.Clip{}).Error; err != nil {
		return fmt.Errorf("deleting clip by filename: %w", err)
	}
	return nil
}

// Count returns the number of stored clip rows.
func (r *ClipRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Clip{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting clips: %w", err)
	}
	return count, nil
}
