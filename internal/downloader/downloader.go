// Package downloader fetches remote source videos through yt-dlp, merging
// audio and video into a single MP4 and mapping the tool's stderr onto a
// small failure taxonomy the job status output can show to users.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/media"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/observability"
)

// reapDelay bounds how long a killed yt-dlp process may linger before its
// pipes are abandoned.
const reapDelay = 20 * time.Second

// Category buckets download failures for user-visible reporting.
type Category string

const (
	// CategoryUnavailable covers private, deleted, and region-locked videos.
	CategoryUnavailable Category = "unavailable"
	// CategoryRestricted covers copyright and age-gate blocks.
	CategoryRestricted Category = "restricted"
	// CategoryTimeout means the download budget ran out.
	CategoryTimeout Category = "timeout"
	// CategoryUnknown is everything else, including transient network faults.
	CategoryUnknown Category = "unknown"
)

// DownloadError is a categorized download failure.
type DownloadError struct {
	URL      string
	Category Category
	Message  string
	Err      error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("downloading %s: %s: %v", e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("downloading %s: %s", e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *DownloadError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could plausibly succeed.
// Unavailable and restricted videos stay that way; a spent timeout budget
// is not refilled.
func (e *DownloadError) Retryable() bool { return e.Category == CategoryUnknown }

// Result describes a completed download.
type Result struct {
	// Path is the absolute path of the merged MP4.
	Path string
	// BaseName is the derived name used for output files, youtube_{id}.
	BaseName string
}

// VideoInfo is the metadata subset surfaced by the video-info endpoint.
type VideoInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	ViewCount  int64   `json:"view_count"`
	UploadDate string  `json:"upload_date"`
	Thumbnail  string  `json:"thumbnail"`
}

// Downloader shells out to yt-dlp.
type Downloader struct {
	cfg    config.DownloaderConfig
	logger *slog.Logger
}

// New builds a downloader around the configured yt-dlp binary.
func New(cfg config.DownloaderConfig, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		cfg:    cfg,
		logger: observability.WithComponent(logger, "downloader"),
	}
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/v/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

// ValidateURL checks that the URL is a recognized YouTube shape and returns
// the 11-character video ID.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url must not be empty")
	}
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			id := m[1]
			if strings.HasPrefix(id, "--") {
				return "", fmt.Errorf("malformed video id %q", id)
			}
			return id, nil
		}
	}
	return "", errors.New("unrecognized YouTube url")
}

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Download fetches the video into destDir as a merged MP4. Unknown-category
// failures are retried with a fixed backoff; unavailable, restricted, and
// timed-out downloads fail immediately.
func (d *Downloader) Download(ctx context.Context, rawURL, destDir string) (*Result, error) {
	videoID, err := ValidateURL(rawURL)
	if err != nil {
		return nil, &DownloadError{
			URL:      rawURL,
			Category: CategoryUnavailable,
			Message:  "unsupported URL or invalid video ID",
			Err:      err,
		}
	}

	attempts := d.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(d.cfg.RetryDelay)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := d.runDownload(ctx, rawURL, videoID, destDir)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var dlErr *DownloadError
		if errors.As(err, &dlErr) && !dlErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt < attempts {
			d.logger.Warn("download attempt failed, retrying",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.Duration("delay", delay),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

func (d *Downloader) runDownload(ctx context.Context, rawURL, videoID, destDir string) (*Result, error) {
	session := models.NewULID().String()
	template := filepath.Join(destDir, "source_"+session+".%(ext)s")
	timeout := time.Duration(d.cfg.Timeout)

	args := []string{
		"--no-warnings",
		"--no-mtime",
		"--socket-timeout", strconv.Itoa(int(timeout.Seconds())),
		"-f", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
	}
	if d.cfg.MaxFileSize > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(d.cfg.MaxFileSize.Bytes(), 10))
	}
	args = append(args, "-o", template, rawURL)

	cmd := &media.Command{
		Binary:    d.cfg.BinaryPath,
		Args:      args,
		ReapDelay: reapDelay,
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := cmd.Run(opCtx); err != nil {
		if ctx.Err() != nil {
			// The job was cancelled, not the download budget.
			return nil, ctx.Err()
		}
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return nil, &DownloadError{
				URL:      rawURL,
				Category: CategoryTimeout,
				Message:  "download timed out",
				Err:      err,
			}
		}
		category, message := classifyStderr(strings.Join(cmd.StderrLines(), "\n"))
		return nil, &DownloadError{URL: rawURL, Category: category, Message: message, Err: err}
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "source_"+session+".*"))
	if err != nil || len(matches) == 0 {
		return nil, &DownloadError{
			URL:      rawURL,
			Category: CategoryUnknown,
			Message:  "downloader reported success but produced no file",
			Err:      err,
		}
	}
	path, err := filepath.Abs(matches[0])
	if err != nil {
		return nil, fmt.Errorf("resolving download path: %w", err)
	}

	d.logger.Info("download complete",
		slog.String("url", rawURL),
		slog.String("path", path),
		slog.Duration("took", time.Since(start)))
	return &Result{Path: path, BaseName: "youtube_" + videoID}, nil
}

// Info fetches video metadata without downloading.
func (d *Downloader) Info(ctx context.Context, rawURL string) (*VideoInfo, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		return nil, &DownloadError{
			URL:      rawURL,
			Category: CategoryUnavailable,
			Message:  "unsupported URL or invalid video ID",
			Err:      err,
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.InfoTimeout))
	defer cancel()

	cmd := exec.CommandContext(opCtx, d.cfg.BinaryPath, "--dump-json", "--no-download", "--no-warnings", rawURL)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return nil, &DownloadError{
				URL:      rawURL,
				Category: CategoryTimeout,
				Message:  "metadata lookup timed out",
				Err:      err,
			}
		}
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = string(exitErr.Stderr)
		}
		category, message := classifyStderr(stderr)
		return nil, &DownloadError{URL: rawURL, Category: category, Message: message, Err: err}
	}

	var info VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}
	return &info, nil
}

// classifyStderr maps yt-dlp stderr text onto a failure category and a
// message fit for the job status output.
func classifyStderr(stderr string) (Category, string) {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "video unavailable"):
		return CategoryUnavailable, "video is unavailable (it may be private, deleted or region locked)"
	case strings.Contains(lower, "private video"):
		return CategoryUnavailable, "video is private and cannot be accessed"
	case strings.Contains(lower, "video has been removed"):
		return CategoryUnavailable, "video has been removed or does not exist"
	case strings.Contains(lower, "unsupported url"):
		return CategoryUnavailable, "unsupported URL or invalid video ID"
	case strings.Contains(lower, "http error 404"):
		return CategoryUnavailable, "video not found"
	case strings.Contains(lower, "age-restricted"), strings.Contains(lower, "sign in to confirm your age"):
		return CategoryRestricted, "video is age restricted and requires sign-in"
	case strings.Contains(lower, "copyright"):
		return CategoryRestricted, "video is blocked for copyright reasons"
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "timeout"):
		return CategoryTimeout, "download timed out"
	default:
		return CategoryUnknown, "download failed"
	}
}
