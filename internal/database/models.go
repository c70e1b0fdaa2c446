package database

import "time"

// Kind discriminates the two concrete media types. Photos and videos share
// the same processing and AI fields; the kind only changes which source
// file feeds the analysis (videos are analyzed through their thumbnail
// frame).
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// Valid reports whether k names a known media kind.
func (k Kind) Valid() bool {
	return k == KindPhoto || k == KindVideo
}

// Status is the processing lifecycle state of a media item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// EmbeddingDim is the length of stored image/text embeddings.
const EmbeddingDim = 512

// MediaItem is a photo or video plus its AI-processing fields.
type MediaItem struct {
	ID            int64  `json:"id"`
	AlbumID       int64  `json:"albumId"`
	Kind          Kind   `json:"kind"`
	FilePath      string `json:"filePath"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`

	AIDescription string    `json:"aiDescription,omitempty"`
	AITags        []string  `json:"aiTags,omitempty"`
	AIConfidence  float64   `json:"aiConfidence,omitempty"`
	Embedding     []float32 `json:"-"`

	Status          Status     `json:"processingStatus"`
	ProcessingError string     `json:"processingError,omitempty"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	UploadedAt      time.Time  `json:"uploadedAt"`
}

// AIProcessed reports whether AI analysis has completed for this item.
func (m *MediaItem) AIProcessed() bool {
	return m.Status == StatusCompleted
}

// AnalysisPath returns the image file the pipeline analyzes and embeds:
// the photo itself, or the extracted thumbnail frame for videos.
func (m *MediaItem) AnalysisPath() string {
	if m.Kind == KindVideo && m.ThumbnailPath != "" {
		return m.ThumbnailPath
	}
	return m.FilePath
}

// Scope restricts store queries to a caller-visible subset of items.
// Zero values mean "no restriction"; visibility decisions themselves are
// made by the caller, never here.
type Scope struct {
	AlbumID int64
	Kind    Kind
}

// StatusCounts aggregates item counts for operator dashboards. Orphaned
// counts pending items whose backing file is missing; those are excluded
// from Pending.
type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Orphaned   int `json:"orphaned"`
}
