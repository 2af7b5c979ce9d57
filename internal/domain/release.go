package domain

import (
	"sync"
	"sync/atomic"
)

// RenamePolicy decides, release wide, where final file names come from.
type RenamePolicy int32

const (
	PolicyUndetermined RenamePolicy = iota
	PolicyManifest
	PolicyEmbedded
)

func (p RenamePolicy) String() string {
	switch p {
	case PolicyManifest:
		return "manifest"
	case PolicyEmbedded:
		return "embedded"
	default:
		return "undetermined"
	}
}

// Release represents the NZB being downloaded in this run.
type Release struct {
	Name        string
	Destination string
	Password    string
	Files       []*File

	totalBytes    int64
	totalSegments int
	downloaded    atomic.Int64
	policy        atomic.Int32

	cursorMu   sync.Mutex
	cursorFile int
}

func NewRelease(name, destination, password string, files []*File) *Release {
	r := &Release{
		Name:        name,
		Destination: destination,
		Password:    password,
		Files:       files,
	}

	for _, f := range files {
		r.totalBytes += f.ManifestBytes()
		r.totalSegments += len(f.Segments)
	}
	return r
}

// Next claims the next (file, segment) pair in manifest order.
// Every pair is handed out exactly once no matter how many callers race.
func (r *Release) Next() (*File, *Segment, bool) {
	r.cursorMu.Lock()
	defer r.cursorMu.Unlock()

	for r.cursorFile < len(r.Files) {
		f := r.Files[r.cursorFile]
		if f.next < len(f.Segments) {
			seg := f.Segments[f.next]
			f.next++
			return f, seg, true
		}
		r.cursorFile++
	}
	return nil, nil, false
}

func (r *Release) TotalBytes() int64     { return r.totalBytes }
func (r *Release) TotalSegments() int    { return r.totalSegments }
func (r *Release) Downloaded() int64     { return r.downloaded.Load() }
func (r *Release) AddDownloaded(n int64) { r.downloaded.Add(n) }

func (r *Release) Policy() RenamePolicy {
	return RenamePolicy(r.policy.Load())
}

// SetPolicy decides the rename policy. Only the first decision sticks.
func (r *Release) SetPolicy(p RenamePolicy) bool {
	return r.policy.CompareAndSwap(int32(PolicyUndetermined), int32(p))
}

// FinalName resolves the on-disk name of f under the release policy.
// An empty result means the file has no usable name.
func (r *Release) FinalName(f *File) string {
	manifest := SafeName(f.Name)
	embedded := SafeName(f.EmbeddedName())

	if r.Policy() == PolicyManifest {
		if manifest != "" {
			return manifest
		}
		return embedded
	}

	if embedded != "" {
		return embedded
	}
	return manifest
}
