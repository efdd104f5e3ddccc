package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ScoreRecord is the engagement score breakdown for one candidate window.
type ScoreRecord struct {
	Keywords    []string `json:"keywords,omitempty"`
	Question    bool     `json:"question"`
	Emotion     float64  `json:"emotion"`
	LengthBonus float64  `json:"length_bonus"`
	Total       float64  `json:"total"`
}

// CandidateWindow is a contiguous run of transcript segments considered for
// extraction as one clip.
type CandidateWindow struct {
	Start    float64             `json:"start"`
	End      float64             `json:"end"`
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
	Score    ScoreRecord         `json:"score"`
}

// Duration returns the window length in seconds.
func (w CandidateWindow) Duration() float64 {
	return w.End - w.Start
}

// Words returns all word tokens of the window in timeline order.
func (w CandidateWindow) Words() []WordToken {
	var out []WordToken
	for _, seg := range w.Segments {
		out = append(out, seg.Words...)
	}
	return out
}

// ClipStatus tracks a single rendered clip outcome.
type ClipStatus string

const (
	ClipStatusRendered ClipStatus = "rendered"
	ClipStatusFailed   ClipStatus = "failed"
)

// ClipRecord describes one produced (or attempted) output clip. It is the
// unit reported in job results, the analysis file and the clips listing.
type ClipRecord struct {
	Index         int        `json:"index"`
	Filename      string     `json:"filename"`
	OutputPath    string     `json:"output_path,omitempty"`
	ThumbnailPath string     `json:"thumbnail,omitempty"`
	Start         float64    `json:"start"`
	End           float64    `json:"end"`
	Duration      float64    `json:"duration"`
	Layout        Layout     `json:"layout"`
	Template      string     `json:"template"`
	Score         float64    `json:"score"`
	Text          string     `json:"text,omitempty"`
	Status        ClipStatus `json:"status"`
	Error         string     `json:"error,omitempty"`
}

// ClipFilename builds the canonical output name for a clip. The score keeps
// one decimal with the point replaced by an underscore so the name stays
// filesystem safe everywhere.
func ClipFilename(jobID string, index int, score float64, layout Layout, template string) string {
	scorePart := strings.ReplaceAll(fmt.Sprintf("%.1f", score), ".", "_")
	name := fmt.Sprintf("clip_%d_score_%s_%s_%s.mp4",
		index, scorePart, layout, strings.ToLower(template))
	if jobID != "" {
		name = jobID + "_" + name
	}
	return name
}

// Clip is the persisted clip library row for one rendered output.
type Clip struct {
	BaseModel
	JobID     string  `gorm:"index;size:128" json:"job_id"`
	Filename  string  `gorm:"uniqueIndex;size:512" json:"filename"`
	Source    string  `gorm:"size:1024" json:"source"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Duration  float64 `json:"duration"`
	Layout    Layout  `gorm:"size:16" json:"layout"`
	Template  string  `gorm:"size:64" json:"template"`
	Score     float64 `json:"score"`
	Text      string  `gorm:"size:4096" json:"text"`
	Thumbnail string  `gorm:"size:512" json:"thumbnail,omitempty"`
	SizeBytes int64   `json:"size_bytes"`
}

// Validate checks required clip fields.
func (c *Clip) Validate() error {
	if c.Filename == "" {
		return ErrOutputPathRequired
	}
	if c.End < c.Start {
		return ErrInvalidTimeRange
	}
	return nil
}

// BeforeCreate validates the clip before insertion.
func (c *Clip) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return c.Validate()
}

// JobRunStatus mirrors the broker terminal states for the history table.
type JobRunStatus string

const (
	JobRunCompleted JobRunStatus = "completed"
	JobRunFailed    JobRunStatus = "failed"
)

// JobRun is the persisted history row for one executed job.
type JobRun struct {
	BaseModel
	JobID      string       `gorm:"index;size:128" json:"job_id"`
	Source     string       `gorm:"size:1024" json:"source"`
	Template   string       `gorm:"size:64" json:"template"`
	Layout     Layout       `gorm:"size:16" json:"layout"`
	Status     JobRunStatus `gorm:"size:16;index" json:"status"`
	ClipCount  int          `json:"clip_count"`
	DurationMs int64        `json:"duration_ms"`
	Worker     string       `gorm:"size:128" json:"worker"`
	LastError  string       `gorm:"size:4096" json:"last_error,omitempty"`
}
