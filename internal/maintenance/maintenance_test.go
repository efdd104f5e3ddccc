package maintenance

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/queue"
	"github.com/jmylchreest/cliparr/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.New(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "library.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}, discardLogger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// writeAged drops a file and backdates its modification time.
func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

// makeAgedDir creates a subdirectory and backdates it.
func makeAgedDir(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func TestSweepRetention(t *testing.T) {
	outputDir := t.TempDir()
	tempDir := t.TempDir()
	db := testStore(t)
	clips := store.NewClipRepository(db.DB)
	runs := store.NewRunRepository(db.DB)
	ctx := context.Background()

	// Expired outputs: a clip with its thumbnail and sidecar.
	oldClip := "job-old_clip_1_score_7_5_fit_hormozi.mp4"
	writeAged(t, outputDir, oldClip, 2*time.Hour)
	writeAged(t, outputDir, "job-old_clip_1_score_7_5_fit_hormozi_thumb.jpg", 2*time.Hour)
	writeAged(t, outputDir, "job-old_status.json", 2*time.Hour)

	// Fresh outputs stay.
	freshClip := "job-new_clip_1_score_8_0_fit_hormozi.mp4"
	writeAged(t, outputDir, freshClip, time.Minute)

	require.NoError(t, clips.Record(ctx, &models.Clip{JobID: "job-old", Filename: oldClip, Start: 0, End: 30, Duration: 30}))
	require.NoError(t, clips.Record(ctx, &models.Clip{JobID: "job-new", Filename: freshClip, Start: 0, End: 30, Duration: 30}))

	// One expired run row, one fresh.
	oldRun := &models.JobRun{JobID: "job-old", Status: models.JobRunCompleted}
	oldRun.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, runs.Record(ctx, oldRun))
	require.NoError(t, runs.Record(ctx, &models.JobRun{JobID: "job-new", Status: models.JobRunCompleted}))

	// Temp dirs: one abandoned, one in use.
	makeAgedDir(t, tempDir, "job-crashed", 25*time.Hour)
	makeAgedDir(t, tempDir, "job-running", time.Minute)

	svc := New(Deps{
		Storage: config.StorageConfig{
			OutputDir: outputDir,
			TempDir:   tempDir,
			Retention: config.Duration(time.Hour),
		},
		Clips:  clips,
		Runs:   runs,
		Logger: discardLogger(),
	})

	stats, err := svc.SweepRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.OutputsRemoved)
	assert.Equal(t, 1, stats.TempDirsRemoved)
	assert.Equal(t, int64(1), stats.RunsPruned)

	assert.NoFileExists(t, filepath.Join(outputDir, oldClip))
	assert.FileExists(t, filepath.Join(outputDir, freshClip))
	assert.NoDirExists(t, filepath.Join(tempDir, "job-crashed"))
	assert.DirExists(t, filepath.Join(tempDir, "job-running"))

	gone, err := clips.GetByFilename(ctx, oldClip)
	require.NoError(t, err)
	assert.Nil(t, gone, "library row for the removed clip is pruned")

	kept, err := clips.GetByFilename(ctx, freshClip)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestSweepRetention_ZeroRetentionDisablesSweep(t *testing.T) {
	outputDir := t.TempDir()
	writeAged(t, outputDir, "ancient.mp4", 1000*time.Hour)

	svc := New(Deps{
		Storage: config.StorageConfig{OutputDir: outputDir, TempDir: t.TempDir()},
		Logger:  discardLogger(),
	})

	stats, err := svc.SweepRetention(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.OutputsRemoved)
	assert.FileExists(t, filepath.Join(outputDir, "ancient.mp4"))
}

func TestSweepRetention_MissingDirsAreFine(t *testing.T) {
	svc := New(Deps{
		Storage: config.StorageConfig{
			OutputDir: "/nonexistent/outputs",
			TempDir:   "/nonexistent/tmp",
			Retention: config.Duration(time.Hour),
		},
		Logger: discardLogger(),
	})

	stats, err := svc.SweepRetention(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.OutputsRemoved)
	assert.Zero(t, stats.TempDirsRemoved)
}

func TestBackup(t *testing.T) {
	db := testStore(t)
	clips := store.NewClipRepository(db.DB)
	ctx := context.Background()
	require.NoError(t, clips.Record(ctx, &models.Clip{
		JobID: "job-1", Filename: "job-1_clip_1_score_7_5_fit_hormozi.mp4",
		Start: 0, End: 30, Duration: 30,
	}))

	backupDir := filepath.Join(t.TempDir(), "backups")
	svc := New(Deps{
		Backup: config.BackupConfig{OutputDir: backupDir, RetentionCount: 5},
		DB:     db,
		Logger: discardLogger(),
	})

	path, err := svc.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, backupDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), backupPrefix))
	assert.True(t, strings.HasSuffix(path, backupSuffix))

	// The archive decompresses to a sqlite database.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	xr, err := xz.NewReader(f)
	require.NoError(t, err)
	header := make([]byte, 16)
	_, err = io.ReadFull(xr, header)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(header))

	// The raw intermediate copy is gone.
	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".db", filepath.Ext(entry.Name()))
	}
}

func TestBackup_PrunesBeyondRetentionCount(t *testing.T) {
	db := testStore(t)
	backupDir := t.TempDir()

	// Older backups already on disk. Names sort chronologically.
	writeAged(t, backupDir, "cliparr-2026-01-01T00-00-00.000.db.xz", time.Hour)
	writeAged(t, backupDir, "cliparr-2026-01-02T00-00-00.000.db.xz", time.Hour)
	writeAged(t, backupDir, "unrelated.txt", time.Hour)

	svc := New(Deps{
		Backup: config.BackupConfig{OutputDir: backupDir, RetentionCount: 2},
		DB:     db,
		Logger: discardLogger(),
	})

	path, err := svc.Backup(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(backupDir, "cliparr-2026-01-01T00-00-00.000.db.xz"))
	assert.FileExists(t, filepath.Join(backupDir, "cliparr-2026-01-02T00-00-00.000.db.xz"))
	assert.FileExists(t, path)
	assert.FileExists(t, filepath.Join(backupDir, "unrelated.txt"), "prune only touches backup files")
}

func TestBackup_RequiresDatabase(t *testing.T) {
	svc := New(Deps{Logger: discardLogger()})

	_, err := svc.Backup(context.Background())
	assert.Error(t, err)
}

func TestStartReleasesStaleClaimsImmediately(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	broker := queue.NewWithClient(client, "cliparr-test", "default", discardLogger())
	ctx := context.Background()

	req := &models.JobRequest{JobID: "job-stale", SourcePath: "/tmp/in.mp4"}
	req.ApplyDefaults()
	require.NoError(t, broker.Enqueue(ctx, req))

	// Claim the job for a worker that never registers a heartbeat, as a
	// crashed process would leave it.
	_, err := broker.DequeueBlocking(ctx, "ghost-worker", time.Second)
	require.NoError(t, err)

	depth, err := broker.QueueDepth(ctx)
	require.NoError(t, err)
	require.Zero(t, depth)

	svc := New(Deps{Broker: broker, Logger: discardLogger()})
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	assert.Eventually(t, func() bool {
		depth, err := broker.QueueDepth(ctx)
		return err == nil && depth == 1
	}, 5*time.Second, 20*time.Millisecond, "orphaned claim is requeued at startup")
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	svc := New(Deps{
		Sweep:  config.MaintenanceConfig{Enabled: true, Schedule: "not a schedule"},
		Logger: discardLogger(),
	})

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid maintenance schedule")
}

func TestStartStop(t *testing.T) {
	svc := New(Deps{Logger: discardLogger()})

	require.NoError(t, svc.Start(context.Background()))
	assert.Error(t, svc.Start(context.Background()), "second start is rejected")

	svc.Stop()
	svc.Stop() // idempotent
}
