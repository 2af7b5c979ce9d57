package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const progressInterval = 1 * time.Second

// StartCLIProgress refreshes the progress line until every worker has exited.
func (d *Downloader) StartCLIProgress(run *Run) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.renderCLIProgress(run)
		case <-run.State.Done():
			d.renderCLIProgress(run)
			return
		}
	}
}

func (d *Downloader) renderCLIProgress(run *Run) {
	snap := run.State.Snapshot(run.Release)
	if snap.TotalBytes == 0 {
		return
	}

	// Progress Bar go brrr [====>   ]
	const barWidth = 20
	completedWidth := int(snap.Percent / 100 * barWidth)
	if completedWidth > barWidth {
		completedWidth = barWidth
	}
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	// Print UI: NAME [Bar] 50% | 500 MB/1.0 GB | Healthy: 99.9% | Speed: 10 MB/s | Threads: 25
	fmt.Fprintf(d.Out, "\r%.15s [%s] %5.1f%% | %s/%s | Healthy: %5.1f%% | Speed: %s/s | Threads: %d      ",
		run.Release.Name, bar, snap.Percent,
		humanize.Bytes(uint64(snap.DownloadedBytes)), humanize.Bytes(uint64(snap.TotalBytes)),
		snap.HealthyPercent, humanize.Bytes(uint64(snap.BytesPerSecond)), snap.Connected)
}

// printFinal writes the one non-refreshing summary of the download.
func (d *Downloader) printFinal(run *Run, ok bool) {
	snap := run.State.Snapshot(run.Release)
	elapsed := time.Duration(snap.ElapsedSeconds * float64(time.Second)).Truncate(time.Second)

	if ok {
		fmt.Fprintf(d.Out, "\nDownload complete: %s, %s in %s (avg %s/s, %d failed segments)\n",
			run.Release.Name, humanize.Bytes(uint64(snap.DownloadedBytes)), elapsed,
			humanize.Bytes(uint64(snap.BytesPerSecond)), snap.Failed)
		d.ctx.Logger.Info("Download complete: %s", run.Release.Name)
		return
	}

	fmt.Fprintf(d.Out, "\nDownload failed: %s, %d of %d segments failed after %s\n",
		run.Release.Name, snap.Failed, snap.TotalSegments, elapsed)
	d.ctx.Logger.Error("Download failed: %s (%d/%d segments failed)", run.Release.Name, snap.Failed, snap.TotalSegments)
}
