package maintenance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// backupTimeFormat stamps backup filenames. Millisecond precision keeps
// names unique and makes lexicographic order chronological.
const backupTimeFormat = "2006-01-02T15-04-05.000"

const (
	backupPrefix = "cliparr-"
	backupSuffix = ".db.xz"
)

// Backup writes an xz-compressed copy of the sqlite clip library into the
// backup directory and prunes the oldest copies beyond the retention
// count. The copy is taken with VACUUM INTO, which snapshots a consistent
// database without blocking readers or writers.
func (s *Service) Backup(ctx context.Context) (string, error) {
	if s.deps.DB == nil {
		return "", fmt.Errorf("no database configured")
	}
	if driver := s.deps.DB.Driver(); driver != "sqlite" {
		return "", fmt.Errorf("backups need the sqlite driver, have %s", driver)
	}

	dir := s.deps.Backup.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	base := backupPrefix + time.Now().UTC().Format(backupTimeFormat)
	rawPath := filepath.Join(dir, base+".db")
	xzPath := filepath.Join(dir, base+backupSuffix)

	if err := s.deps.DB.WithContext(ctx).Exec("VACUUM INTO ?", rawPath).Error; err != nil {
		return "", fmt.Errorf("vacuum into backup: %w", err)
	}
	defer os.Remove(rawPath)

	if err := compressFile(rawPath, xzPath); err != nil {
		os.Remove(xzPath)
		return "", fmt.Errorf("compressing backup: %w", err)
	}

	info, err := os.Stat(xzPath)
	if err != nil {
		return "", fmt.Errorf("stat backup: %w", err)
	}

	pruned := s.pruneBackups(dir)
	s.logger.Info("backup written",
		slog.String("path", xzPath),
		slog.Int64("size", info.Size()),
		slog.Int("pruned", pruned))
	return xzPath, nil
}

// pruneBackups removes the oldest backup files beyond the retention
// count and returns how many went. A count of zero keeps everything.
func (s *Service) pruneBackups(dir string) int {
	keep := s.deps.Backup.RetentionCount
	if keep <= 0 {
		return 0
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			names = append(names, name)
		}
	}
	if len(names) <= keep {
		return 0
	}

	sort.Strings(names)
	pruned := 0
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			s.logger.Warn("failed to prune backup",
				slog.String("file", name), slog.Any("error", err))
			continue
		}
		pruned++
	}
	return pruned
}

// compressFile xz-compresses src into dst. The writer is closed
// explicitly: the stream index lands on Close, so a swallowed close
// error would mean a silently truncated archive.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	xw, err := xz.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(xw, in); err != nil {
		xw.Close()
		out.Close()
		return err
	}
	if err := xw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
