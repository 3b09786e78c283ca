package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// FrameInfo is the per-frame metadata reported by ffprobe for the first
// video stream.
type FrameInfo struct {
	KeyFrame  bool
	Timestamp float64
}

type ProbeResult struct {
	Frames []FrameInfo
}

func (p *ProbeResult) KeyFrameIndices() []int {
	var out []int
	for i, f := range p.Frames {
		if f.KeyFrame {
			out = append(out, i)
		}
	}
	return out
}

type Prober struct {
	path string
}

func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{path: ffprobePath}
}

// Probe lists every frame of the first video stream in decode order.
func (p *Prober) Probe(ctx context.Context, videoPath string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "frame=key_frame,best_effort_timestamp_time,pts_time",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(bytes.NewReader(output))
}

type probeOutput struct {
	Frames []struct {
		KeyFrame   int    `json:"key_frame"`
		BestEffort string `json:"best_effort_timestamp_time"`
		PTS        string `json:"pts_time"`
	} `json:"frames"`
}

// parseProbe reads ffprobe's JSON frame listing. Frames without a usable
// timestamp inherit the previous frame's.
func parseProbe(r io.Reader) (*ProbeResult, error) {
	var out probeOutput
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{Frames: make([]FrameInfo, 0, len(out.Frames))}
	var last float64
	for _, f := range out.Frames {
		ts, ok := parseSeconds(f.BestEffort)
		if !ok {
			ts, ok = parseSeconds(f.PTS)
		}
		if !ok {
			ts = last
		}
		last = ts
		result.Frames = append(result.Frames, FrameInfo{KeyFrame: f.KeyFrame == 1, Timestamp: ts})
	}
	return result, nil
}

func parseSeconds(s string) (float64, bool) {
	if s == "" || s == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
