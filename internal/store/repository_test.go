package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/cliparr/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Clip{}, &models.JobRun{})
	require.NoError(t, err)

	return db
}

func testClip(jobID, filename string) *models.Clip {
	return &models.Clip{
		JobID:    jobID,
		Filename: filename,
		Source:   "https://www.youtube.com/watch?v=abc123def45",
		Start:    12,
		End:      42,
		Duration: 30,
		Layout:   models.LayoutFit,
		Template: "Hormozi",
		Score:    7.5,
		Text:     "the part everyone talks about",
	}
}

func TestClipRepo_RecordAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	clip := testClip("job-1", "job-1_clip_1_score_7_5_fit_hormozi.mp4")
	require.NoError(t, repo.Record(ctx, clip))
	assert.False(t, clip.ID.IsZero())

	found, err := repo.GetByFilename(ctx, clip.Filename)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "job-1", found.JobID)
	assert.InDelta(t, 7.5, found.Score, 1e-9)
}

func TestClipRepo_RecordUpsertsOnFilename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	first := testClip("job-1", "job-1_clip_1_score_7_5_fit_hormozi.mp4")
	require.NoError(t, repo.Record(ctx, first))

	second := testClip("job-1", "job-1_clip_1_score_7_5_fit_hormozi.mp4")
	second.Score = 8.2
	second.Text = "re-rendered"
	require.NoError(t, repo.Record(ctx, second))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := repo.GetByFilename(ctx, first.Filename)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.InDelta(t, 8.2, found.Score, 1e-9)
	assert.Equal(t, "re-rendered", found.Text)
}

func TestClipRepo_GetByFilenameNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)

	found, err := repo.GetByFilename(context.Background(), "missing.mp4")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestClipRepo_GetByJobID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, testClip("job-1", "job-1_clip_1_score_7_5_fit_hormozi.mp4")))
	require.NoError(t, repo.Record(ctx, testClip("job-1", "job-1_clip_2_score_6_0_fit_hormozi.mp4")))
	require.NoError(t, repo.Record(ctx, testClip("job-2", "job-2_clip_1_score_5_0_fit_hormozi.mp4")))

	clips, err := repo.GetByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, clips, 2)
	assert.Equal(t, "job-1_clip_1_score_7_5_fit_hormozi.mp4", clips[0].Filename)
}

func TestClipRepo_ListRecentPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		require.NoError(t, repo.Record(ctx, testClip("job-1", name)))
	}

	clips, total, err := repo.ListRecent(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, clips, 2)

	rest, _, err := repo.ListRecent(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestClipRepo_DeleteByFilename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClipRepository(db)
	ctx := context.Background()

	clip := testClip("job-1", "gone.mp4")
	require.NoError(t, repo.Record(ctx, clip))
	require.NoError(t, repo.DeleteByFilename(ctx, "gone.mp4"))

	found, err := repo.GetByFilename(ctx, "gone.mp4")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRunRepo_RecordAndLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	older := &models.JobRun{
		JobID:     "job-1",
		Source:    "https://youtu.be/abc123def45",
		Template:  "Hormozi",
		Layout:    models.LayoutFit,
		Status:    models.JobRunFailed,
		LastError: "download failed",
		Worker:    "opus-caption-worker",
	}
	require.NoError(t, repo.Record(ctx, older))

	newer := &models.JobRun{
		JobID:      "job-1",
		Source:     "https://youtu.be/abc123def45",
		Template:   "Hormozi",
		Layout:     models.LayoutFit,
		Status:     models.JobRunCompleted,
		ClipCount:  3,
		DurationMs: 90000,
		Worker:     "opus-caption-worker",
	}
	newer.CreatedAt = older.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Record(ctx, newer))

	latest, err := repo.LatestByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.JobRunCompleted, latest.Status)
	assert.Equal(t, 3, latest.ClipCount)
}

func TestRunRepo_LatestNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	latest, err := repo.LatestByJobID(context.Background(), "never-ran")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRunRepo_CountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Record(ctx, &models.JobRun{JobID: "ok", Status: models.JobRunCompleted}))
	}
	require.NoError(t, repo.Record(ctx, &models.JobRun{JobID: "bad", Status: models.JobRunFailed}))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.JobRunCompleted])
	assert.Equal(t, int64(1), counts[models.JobRunFailed])
}

func TestRunRepo_PruneOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	old := &models.JobRun{JobID: "old", Status: models.JobRunCompleted}
	require.NoError(t, repo.Record(ctx, old))
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh := &models.JobRun{JobID: "fresh", Status: models.JobRunCompleted}
	require.NoError(t, repo.Record(ctx, fresh))

	n, err := repo.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fresh", runs[0].JobID)
}
