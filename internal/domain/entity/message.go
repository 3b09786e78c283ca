package entity

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SamplingRequestMessage is the inbound message from the video.sampling queue.
// Predicate is an optional expression over the frame index column, e.g.
// {"op":"AND","left":{"op":">=","column":"id","value":10},"right":{"op":"<","column":"id","value":90}}.
type SamplingRequestMessage struct {
	JobID     uuid.UUID       `json:"job_id"`
	UserID    string          `json:"user_id"`
	VideoKey  string          `json:"video_key"`
	FileSize  int64           `json:"file_size"`
	UserEmail string          `json:"user_email"`
	Predicate json.RawMessage `json:"predicate,omitempty"`
	Sampling  SamplingSpec    `json:"sampling"`
}

// VideoStatusMessage is the outbound message published to the video.status queue.
type VideoStatusMessage struct {
	JobID        uuid.UUID    `json:"job_id"`
	UserID       string       `json:"user_id"`
	Status       JobStatus    `json:"status"`
	VideoKey     string       `json:"video_key"`
	ZipKey       string       `json:"zip_key,omitempty"`
	Sampling     SamplingSpec `json:"sampling"`
	TotalFrames  int          `json:"total_frames,omitempty"`
	FrameCount   int          `json:"frame_count,omitempty"`
	Duration     float64      `json:"duration_seconds,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Attempt      int          `json:"attempt"`
	MaxAttempts  int          `json:"max_attempts"`
}
