package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// orphanTempAge is how old a job temp dir must be before the sweep
// treats it as abandoned by a crashed worker. Stage budgets cap
// legitimate runs well below this.
const orphanTempAge = 24 * time.Hour

// SweepStats reports what one retention sweep removed.
type SweepStats struct {
	OutputsRemoved  int
	TempDirsRemoved int
	RunsPruned      int64
}

// SweepRetention deletes rendered outputs, sidecars and thumbnails older
// than the storage retention, removes abandoned job temp dirs, and prunes
// clip library rows whose file went with them. Per-file failures are
// logged and skipped; the sweep keeps going.
func (s *Service) SweepRetention(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	retention := time.Duration(s.deps.Storage.Retention)
	if retention <= 0 {
		return stats, nil
	}
	cutoff := time.Now().Add(-retention)

	removed, err := s.sweepOutputs(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	stats.OutputsRemoved = removed

	stats.TempDirsRemoved = s.sweepTempDirs(time.Now().Add(-orphanTempAge))

	if s.deps.Runs != nil {
		pruned, err := s.deps.Runs.PruneOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Warn("pruning job history failed", slog.Any("error", err))
		} else {
			stats.RunsPruned = pruned
		}
	}

	return stats, nil
}

// sweepOutputs removes expired files from the flat output directory. For
// each removed clip video the matching library row is deleted so the
// catalog never lists files that are gone.
func (s *Service) sweepOutputs(ctx context.Context, cutoff time.Time) (int, error) {
	dir := s.deps.Storage.OutputDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading output dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove expired output",
				slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++

		if s.deps.Clips != nil && strings.HasSuffix(entry.Name(), ".mp4") {
			if err := s.deps.Clips.DeleteByFilename(ctx, entry.Name()); err != nil {
				s.logger.Warn("failed to prune clip row",
					slog.String("filename", entry.Name()), slog.Any("error", err))
			}
		}
	}
	return removed, nil
}

// sweepTempDirs removes per-job work directories not touched since the
// cutoff. The temp dir holds nothing but those, so every stale subdir
// belongs to a job that is no longer running.
func (s *Service) sweepTempDirs(cutoff time.Time) int {
	dir := s.deps.Storage.TempDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading temp dir failed", slog.String("dir", dir), slog.Any("error", err))
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove orphaned temp dir",
				slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
		s.logger.Info("removed orphaned temp dir",
			slog.String("path", path),
			slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)))
	}
	return removed
}
