package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/datallboy/nzbweaver/internal/domain"
	"github.com/segmentio/ksuid"
)

// SegmentStore keeps each decoded segment in its own temporary file until
// the assembler joins them.
type SegmentStore struct {
	dir string
}

func NewSegmentStore(destination string, runID ksuid.KSUID) *SegmentStore {
	return &SegmentStore{
		dir: filepath.Join(destination, ".nzbweaver-"+runID.String()),
	}
}

func (s *SegmentStore) Dir() string { return s.dir }

func (s *SegmentStore) Prepare() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDirectory, s.dir, err)
	}
	return nil
}

// SegmentPath is unique per (file, segment), so concurrent writers never collide
func (s *SegmentStore) SegmentPath(f *domain.File, seg *domain.Segment) string {
	return filepath.Join(s.dir, fmt.Sprintf("f%04d.s%05d.seg", f.Index, seg.Number))
}

// Write stores data through a temporary name so a reader never sees a partial segment.
func (s *SegmentStore) Write(f *domain.File, seg *domain.Segment, data []byte) error {
	final := s.SegmentPath(f, seg)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", domain.ErrWrite, filepath.Base(final), err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", domain.ErrWrite, filepath.Base(final), err)
	}
	return nil
}

// Cleanup removes every remaining temporary.
func (s *SegmentStore) Cleanup() error {
	return os.RemoveAll(s.dir)
}
