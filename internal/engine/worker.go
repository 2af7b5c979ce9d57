package engine

import (
	"context"
	"fmt"

	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/decoding"
	"github.com/datallboy/nzbweaver/internal/domain"
	"golang.org/x/sync/errgroup"
)

// runWorkerPool starts one worker per connection and waits for all of them.
// It only fails when no worker managed to get a usable session.
func (d *Downloader) runWorkerPool(ctx context.Context, run *Run, workers int) error {
	var g errgroup.Group

	for id := 1; id <= workers; id++ {
		g.Go(func() error {
			return d.worker(ctx, id, run)
		})
	}

	// A worker that never connected is only fatal when all of them failed
	if err := g.Wait(); err != nil && run.State.Connected() == 0 {
		return fmt.Errorf("%w: %w", ErrNoSessions, err)
	}
	return nil
}

// worker owns one session and pulls (file, segment) pairs until the cursor
// is exhausted, the run is stopped or ctx is cancelled.
func (d *Downloader) worker(ctx context.Context, id int, run *Run) error {
	defer run.State.WorkerFinished()

	sess := d.ctx.Sessions(id)
	defer sess.Close()

	if err := openSession(ctx, sess); err != nil {
		d.ctx.Logger.Warn("[worker %d] giving up: %v", id, err)
		return err
	}
	run.State.WorkerConnected()

	for {
		if run.State.Stopped() || ctx.Err() != nil {
			return nil
		}

		// A timed out or dropped session cannot be trusted, redial before claiming more work
		if sess.Broken() {
			d.ctx.Logger.Debug("[worker %d] reconnecting", id)
			if err := openSession(ctx, sess); err != nil {
				d.ctx.Logger.Warn("[worker %d] reconnect failed: %v", id, err)
				return nil
			}
		}

		f, seg, ok := run.Release.Next()
		if !ok {
			return nil
		}
		run.State.Claimed()
		f.Begin()

		if err := d.processSegment(ctx, sess, run, f, seg); err != nil {
			f.MarkDamaged()
			d.ctx.Logger.Warn("[worker %d] %s segment %d: %v", id, f.Name, seg.Number, err)

			if run.State.RecordFailure() {
				d.ctx.Logger.Error("Failure threshold of %.1f%% exceeded (%d of %d segments failed), stopping download",
					d.ctx.Config.Download.CancelThresholdPct, run.State.Failed(), run.Release.TotalSegments())
			}
		} else {
			run.State.RecordSuccess()
		}

		f.Finish()
	}
}

func openSession(ctx context.Context, sess app.Session) error {
	if err := sess.Connect(ctx); err != nil {
		return err
	}
	return sess.Authenticate(ctx)
}

// processSegment handles the unique pipeline for a single Usenet article
func (d *Downloader) processSegment(ctx context.Context, sess app.Session, run *Run, f *domain.File, seg *domain.Segment) error {
	body, err := sess.FetchArticle(ctx, seg.ArticleID)
	if err != nil {
		return err
	}

	part, decodeErr := decoding.DecodeArticle(body)
	if part == nil {
		return decodeErr
	}

	// Only the first segment names the file
	if seg.Number == 1 {
		if name, ok := part.Begin.Name(); ok {
			size, known := part.FileSize()
			f.SetEmbedded(name, size, known)
		}
	}

	// On a checksum mismatch the bytes are still kept so offsets stay intact for par2
	if len(part.Data) > 0 {
		if err := run.Store.Write(f, seg, part.Data); err != nil {
			return err
		}

		if seg.SetDecodedSize(int64(len(part.Data))) {
			f.RecordDecoded(seg)
			run.Release.AddDownloaded(seg.Bytes)
		}
	}

	return decodeErr
}
