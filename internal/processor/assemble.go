package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/domain"
)

// Assemble joins the decoded segments of every file, in manifest order,
// into its final name inside the release destination.
func (p *Processor) Assemble(ctx context.Context, rel *domain.Release, src app.SegmentSource) error {
	for _, f := range rel.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := rel.FinalName(f)
		if name == "" {
			p.ctx.Logger.Warn("No usable name for file %d (%q), skipping", f.Index, f.Subject)
			continue
		}

		if err := p.mergeFile(f, src, filepath.Join(rel.Destination, name)); err != nil {
			return err
		}

		if missing := f.MissingSegments(); len(missing) > 0 {
			p.ctx.Logger.Warn("%s assembled with %d missing segment(s): %v", name, len(missing), missing)
		} else {
			p.ctx.Logger.Debug("%s assembled", name)
		}
	}
	return nil
}

func (p *Processor) mergeFile(f *domain.File, src app.SegmentSource, finalPath string) error {
	f.SetState(domain.FileJoining)

	out, err := os.OpenFile(finalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrWrite, filepath.Base(finalPath), err)
	}
	defer out.Close()

	for _, seg := range f.Segments {
		tempPath := src.SegmentPath(f, seg)

		if seg.DecodedSize() == 0 {
			// a failed segment may still have left data behind
			os.Remove(tempPath)
			continue
		}

		if err := appendAndCleanup(tempPath, out); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				p.ctx.Logger.Warn("%v", err)
				continue
			}
			return fmt.Errorf("%w: %s: %w", domain.ErrWrite, filepath.Base(finalPath), err)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrWrite, filepath.Base(finalPath), err)
	}

	f.SetState(domain.FileDone)
	return nil
}

func appendAndCleanup(srcPath string, dst io.Writer) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("missing segment file %s: %w", filepath.Base(srcPath), err)
	}

	// Stream the segment into the final file
	_, err = io.Copy(dst, src)
	src.Close() // Close before removing

	if err != nil {
		return err
	}

	// Clean up the temp segment immediately to free space
	return os.Remove(srcPath)
}
