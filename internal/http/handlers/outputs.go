package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
)

// OutputsHandler streams finished clips and job artifacts from the output
// directory.
type OutputsHandler struct {
	outputDir string
	logger    *slog.Logger
}

// NewOutputsHandler creates a new outputs handler.
func NewOutputsHandler(outputDir string, logger *slog.Logger) *OutputsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputsHandler{
		outputDir: outputDir,
		logger:    logger,
	}
}

// RegisterChiRoutes registers the file streaming routes.
// This uses Chi directly because Huma doesn't handle file streaming well.
func (h *OutputsHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/outputs/{filename}", h.ServeFile)
	router.Head("/outputs/{filename}", h.ServeFile)
}

// ServeFile streams one file from the output directory. Unknown names return
// 404; a client that disconnects mid-stream is logged at warning level and
// otherwise ignored.
func (h *OutputsHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if err := validateOutputFilename(filename); err != nil {
		writeJSONError(w, "invalid filename", http.StatusBadRequest)
		return
	}

	path := filepath.Join(h.outputDir, filename)
	file, err := os.Open(path)
	if err != nil {
		writeJSONError(w, "File not found.", http.StatusNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, "File not found.", http.StatusNotFound)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, file); err != nil {
		if isClientDisconnect(r, err) {
			h.logger.Warn("client disconnected during download",
				slog.String("filename", filename),
				slog.String("remote_addr", r.RemoteAddr),
			)
			return
		}
		h.logger.Error("failed to stream output file",
			slog.String("filename", filename),
			slog.Any("error", err),
		)
	}
}

// validateOutputFilename rejects empty names and path traversal attempts.
func validateOutputFilename(filename string) error {
	if filename == "" {
		return errors.New("filename is required")
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return errors.New("invalid filename")
	}
	if filepath.Base(filename) != filename {
		return errors.New("invalid filename")
	}
	return nil
}

// isClientDisconnect reports whether a response write failed because the
// client went away rather than because of a server-side fault.
func isClientDisconnect(r *http.Request, err error) bool {
	if r.Context().Err() != nil {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
