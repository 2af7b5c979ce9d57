package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/domain"
	"github.com/dustin/go-humanize"
)

// Run ties a release to the state of the download working on it.
type Run struct {
	Release *domain.Release
	State   *RunState
	Store   *SegmentStore
}

// Downloader is the concrete implementation of the download engine.
type Downloader struct {
	ctx *app.Context

	// Out receives the progress line and final messages
	Out io.Writer

	mu      sync.RWMutex
	current *Run
}

func NewDownloader(ctx *app.Context) *Downloader {
	return &Downloader{
		ctx: ctx,
		Out: os.Stdout,
	}
}

// Download fetches every segment of rel, then hands the result to the processor.
// When the failure threshold trips, assembly and post-processing are skipped.
func (d *Downloader) Download(ctx context.Context, rel *domain.Release) error {
	if err := os.MkdirAll(rel.Destination, 0755); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDirectory, rel.Destination, err)
	}

	workers := d.ctx.Config.Server.Connections
	state := NewRunState(rel.TotalSegments(), workers, d.ctx.Config.Download.CancelThresholdPct)
	store := NewSegmentStore(rel.Destination, state.ID)

	if err := store.Prepare(); err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			d.ctx.Logger.Warn("Failed to remove segment temporaries in %s: %v", store.Dir(), err)
		}
	}()

	run := &Run{Release: rel, State: state, Store: store}
	d.setCurrent(run)

	d.ctx.Logger.Info("Starting download for: %s (%s, %d files, %d segments, %d connections) [run %s]",
		rel.Name, humanize.Bytes(uint64(rel.TotalBytes())), len(rel.Files), rel.TotalSegments(), workers, state.ID)

	progressDone := make(chan struct{})
	if d.ctx.Quiet {
		close(progressDone)
	} else {
		go func() {
			defer close(progressDone)
			d.StartCLIProgress(run)
		}()
	}

	err := d.runWorkerPool(ctx, run, workers)
	<-progressDone

	if err != nil {
		d.printFinal(run, false)
		return err
	}

	if state.Aborted() {
		d.printFinal(run, false)
		return fmt.Errorf("%w: %d of %d segments failed", ErrReleaseAborted, state.Failed(), rel.TotalSegments())
	}

	if err := ctx.Err(); err != nil {
		d.ctx.Logger.Warn("Download of %s cancelled", rel.Name)
		return err
	}

	d.printFinal(run, true)

	if state.Failed() > 0 {
		d.ctx.Logger.Warn("%d segments failed, relying on par2 repair", state.Failed())
	}

	// Post Process: name resolution, assembly, PAR2 verify/repair, extraction
	if err := d.ctx.Processor.PostProcess(ctx, rel, store); err != nil {
		return fmt.Errorf("post-processing failed: %w", err)
	}

	return nil
}

func (d *Downloader) setCurrent(run *Run) {
	d.mu.Lock()
	d.current = run
	d.mu.Unlock()
}

func (d *Downloader) Current() (*Run, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current, d.current != nil
}

// Status implements the status API source.
func (d *Downloader) Status() (Snapshot, bool) {
	run, ok := d.Current()
	if !ok {
		return Snapshot{}, false
	}
	return run.State.Snapshot(run.Release), true
}

func (d *Downloader) Files() ([]FileSnapshot, bool) {
	run, ok := d.Current()
	if !ok {
		return nil, false
	}
	return FileSnapshots(run.Release), true
}
