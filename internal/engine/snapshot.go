package engine

import (
	"time"

	"github.com/datallboy/nzbweaver/internal/domain"
)

// Snapshot is a point-in-time view of a run, served by the status API.
type Snapshot struct {
	RunID           string  `json:"run_id"`
	Release         string  `json:"release"`
	TotalBytes      int64   `json:"total_bytes"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	Percent         float64 `json:"percent"`
	HealthyPercent  float64 `json:"healthy_percent"`
	TotalSegments   int64   `json:"total_segments"`
	Claimed         int64   `json:"claimed_segments"`
	Completed       int64   `json:"completed_segments"`
	Failed          int64   `json:"failed_segments"`
	Workers         int     `json:"workers"`
	Connected       int     `json:"connected_workers"`
	BytesPerSecond  float64 `json:"bytes_per_second"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	Aborted         bool    `json:"aborted"`
	Finished        bool    `json:"finished"`
}

type FileSnapshot struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Embedded   string `json:"embedded_name,omitempty"`
	State      string `json:"state"`
	Segments   int    `json:"segments"`
	Decoded    int    `json:"decoded_segments"`
	Remaining  int    `json:"remaining_segments"`
	InFlight   int    `json:"in_flight"`
	Downloaded int64  `json:"downloaded_bytes"`
	Intact     bool   `json:"intact"`
	Missing    []int  `json:"missing,omitempty"`
}

func (s *RunState) Snapshot(rel *domain.Release) Snapshot {
	elapsed := time.Since(s.StartedAt)
	downloaded := rel.Downloaded()

	snap := Snapshot{
		RunID:           s.ID.String(),
		Release:         rel.Name,
		TotalBytes:      rel.TotalBytes(),
		DownloadedBytes: downloaded,
		HealthyPercent:  s.HealthyPercent(),
		TotalSegments:   s.total,
		Claimed:         s.claimed.Load(),
		Completed:       s.completed.Load(),
		Failed:          s.failed.Load(),
		Workers:         int(s.workers),
		Connected:       s.Connected(),
		ElapsedSeconds:  elapsed.Seconds(),
		Aborted:         s.Aborted(),
	}

	if snap.TotalBytes > 0 {
		snap.Percent = float64(downloaded) / float64(snap.TotalBytes) * 100
	}
	if secs := elapsed.Seconds(); secs > 0 {
		snap.BytesPerSecond = float64(downloaded) / secs
	}

	select {
	case <-s.done:
		snap.Finished = true
	default:
	}

	return snap
}

// FileSnapshots lists per-file progress. Missing segments are only reported
// once nothing is outstanding for the file.
func FileSnapshots(rel *domain.Release) []FileSnapshot {
	out := make([]FileSnapshot, 0, len(rel.Files))
	for _, f := range rel.Files {
		fs := FileSnapshot{
			Index:      f.Index,
			Name:       f.Name,
			Embedded:   f.EmbeddedName(),
			State:      f.State().String(),
			Segments:   len(f.Segments),
			Decoded:    f.DecodedSegments(),
			Remaining:  f.Remaining(),
			InFlight:   f.InFlight(),
			Downloaded: f.Downloaded(),
			Intact:     f.Intact(),
		}
		if fs.Remaining == 0 && fs.InFlight == 0 {
			fs.Missing = f.MissingSegments()
		}
		out = append(out, fs)
	}
	return out
}
