package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/cliparr/internal/downloader"
)

// videoInfoTimeout bounds the remote metadata probe.
const videoInfoTimeout = 30 * time.Second

// MetadataProber fetches remote video metadata without downloading.
// downloader.Downloader satisfies it.
type MetadataProber interface {
	Info(ctx context.Context, rawURL string) (*downloader.VideoInfo, error)
}

// VideoInfoHandler probes remote video metadata.
type VideoInfoHandler struct {
	prober MetadataProber
}

// NewVideoInfoHandler creates a new video info handler.
func NewVideoInfoHandler(prober MetadataProber) *VideoInfoHandler {
	return &VideoInfoHandler{prober: prober}
}

// Register registers the video info routes with the API.
func (h *VideoInfoHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getVideoInfo",
		Method:      "GET",
		Path:        "/video-info",
		Summary:     "Probe video metadata",
		Description: "Returns title, duration, and uploader for a remote video without downloading it",
		Tags:        []string{"Clips"},
	}, h.Get)
}

// GetVideoInfoInput is the input for probing video metadata.
type GetVideoInfoInput struct {
	VideoID string `query:"video_id" doc:"YouTube video id" required:"false"`
	URL     string `query:"url" doc:"Full video URL, alternative to video_id" required:"false"`
}

// GetVideoInfoOutput is the output for probing video metadata.
type GetVideoInfoOutput struct {
	Body VideoInfoResponse
}

// Get probes remote metadata for a video id or URL.
func (h *VideoInfoHandler) Get(ctx context.Context, input *GetVideoInfoInput) (*GetVideoInfoOutput, error) {
	rawURL := input.URL
	if rawURL == "" {
		if input.VideoID == "" {
			return nil, huma.Error400BadRequest("video_id parameter is required")
		}
		rawURL = downloader.WatchURL(input.VideoID)
	}

	probeCtx, cancel := context.WithTimeout(ctx, videoInfoTimeout)
	defer cancel()

	info, err := h.prober.Info(probeCtx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, huma.Error504GatewayTimeout("Request timeout while fetching video info")
		}
		return nil, huma.Error500InternalServerError("Failed to fetch video info", err)
	}

	return &GetVideoInfoOutput{
		Body: VideoInfoResponse{
			ID:         info.ID,
			Title:      info.Title,
			Duration:   info.Duration,
			Uploader:   info.Uploader,
			ViewCount:  info.ViewCount,
			UploadDate: info.UploadDate,
			Thumbnail:  info.Thumbnail,
		},
	}, nil
}
