package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/version"
)

// AnalysisFilename is the fixed name of the per-job analysis summary
// written next to the clips.
const AnalysisFilename = "viral_clips_analysis.json"

// Analysis is the summary file schema.
type Analysis struct {
	Clips      []models.ClipRecord `json:"clips"`
	TotalClips int                 `json:"total_clips"`
	Settings   AnalysisSettings    `json:"settings"`
}

// AnalysisSettings records the knobs the clips were produced with.
type AnalysisSettings struct {
	TargetLength float64 `json:"target_length"`
	Version      string  `json:"version"`
}

// WriteAnalysis writes the analysis summary for a finished job into
// outputDir. Only successfully rendered clips are listed. The write is an
// atomic replacement.
func WriteAnalysis(outputDir string, records []models.ClipRecord, targetLength float64) (string, error) {
	rendered := make([]models.ClipRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == models.ClipStatusRendered {
			rendered = append(rendered, rec)
		}
	}

	a := Analysis{
		Clips:      rendered,
		TotalClips: len(rendered),
		Settings: AnalysisSettings{
			TargetLength: targetLength,
			Version:      version.Version,
		},
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding analysis: %w", err)
	}

	path := filepath.Join(outputDir, AnalysisFilename)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("replacing analysis file: %w", err)
	}
	return path, nil
}
