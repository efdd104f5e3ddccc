package handlers

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/store"
)

// libraryPageSize caps how many catalog rows are loaded to enrich a listing.
const libraryPageSize = 500

// ClipsHandler lists finished clips from the output directory.
type ClipsHandler struct {
	outputDir string
	library   *store.ClipRepository
	logger    *slog.Logger
}

// NewClipsHandler creates a new clips handler. The library is optional; when
// present, listings are enriched with catalog metadata.
func NewClipsHandler(outputDir string, library *store.ClipRepository, logger *slog.Logger) *ClipsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipsHandler{
		outputDir: outputDir,
		library:   library,
		logger:    logger,
	}
}

// Register registers the clips routes with the API.
func (h *ClipsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listClips",
		Method:      "GET",
		Path:        "/clips",
		Summary:     "List clips",
		Description: "Returns finished MP4 clips in the output directory, newest first",
		Tags:        []string{"Clips"},
	}, h.List)
}

// ListClipsInput is the input for listing clips.
type ListClipsInput struct{}

// ListClipsOutput is the output for listing clips.
type ListClipsOutput struct {
	Body struct {
		Clips []ClipEntry `json:"clips"`
	}
}

// List scans the output directory for finished clips.
func (h *ClipsHandler) List(ctx context.Context, input *ListClipsInput) (*ListClipsOutput, error) {
	entries, err := os.ReadDir(h.outputDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, huma.Error500InternalServerError("failed to list clips", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	known := h.libraryIndex(ctx)

	resp := &ListClipsOutput{}
	resp.Body.Clips = make([]ClipEntry, 0, len(names))
	for _, name := range names {
		entry := ClipEntry{
			Filename: name,
			URL:      "/outputs/" + name,
		}
		if row, ok := known[name]; ok {
			entry.JobID = row.JobID
			entry.Duration = row.Duration
			entry.Score = row.Score
			entry.Layout = string(row.Layout)
			entry.Template = row.Template
			entry.Thumbnail = row.Thumbnail
			entry.SizeBytes = row.SizeBytes
		}
		resp.Body.Clips = append(resp.Body.Clips, entry)
	}

	return resp, nil
}

// libraryIndex loads recent catalog rows keyed by filename. The library is
// best effort; failures degrade the listing to bare filenames.
func (h *ClipsHandler) libraryIndex(ctx context.Context) map[string]*models.Clip {
	if h.library == nil {
		return nil
	}
	rows, _, err := h.library.ListRecent(ctx, 0, libraryPageSize)
	if err != nil {
		h.logger.Warn("clip library unavailable for listing", slog.Any("error", err))
		return nil
	}
	known := make(map[string]*models.Clip, len(rows))
	for _, row := range rows {
		known[row.Filename] = row
	}
	return known
}
