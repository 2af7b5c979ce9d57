package domain

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
)

type FileState int32

const (
	FileIdle FileState = iota
	FileDownloading
	FileJoining
	FileDone
)

func (s FileState) String() string {
	switch s {
	case FileDownloading:
		return "downloading"
	case FileJoining:
		return "joining"
	case FileDone:
		return "done"
	default:
		return "idle"
	}
}

// Segment represents an individual article to be fetched from Usenet
type Segment struct {
	Number    int
	Bytes     int64
	ArticleID string

	decoded atomic.Int64
}

// DecodedSize is zero until the segment was decoded successfully
func (s *Segment) DecodedSize() int64 {
	return s.decoded.Load()
}

// SetDecodedSize records the decoded length. Only the first call wins.
func (s *Segment) SetDecodedSize(n int64) bool {
	if n <= 0 {
		return false
	}
	return s.decoded.CompareAndSwap(0, n)
}

// File represents an individual file within a Release.
type File struct {
	Index    int    // Original order in the NZB
	Name     string // Sanitized name derived from the subject
	Subject  string
	Groups   []string
	Segments []*Segment

	mu           sync.Mutex
	embeddedName string
	declaredSize int64
	sizeKnown    bool
	decodedSet   *roaring.Bitmap

	downloaded atomic.Int64
	damaged    atomic.Bool
	remaining  atomic.Int32
	inFlight   atomic.Int32
	state      atomic.Int32

	// next segment to hand out, guarded by the release cursor lock
	next int
}

// NewFile sorts segments by number so the cursor and the assembler see them in order.
func NewFile(index int, name, subject string, groups []string, segments []*Segment) *File {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Number < segments[j].Number
	})

	f := &File{
		Index:      index,
		Name:       name,
		Subject:    subject,
		Groups:     groups,
		Segments:   segments,
		decodedSet: roaring.New(),
	}
	f.remaining.Store(int32(len(segments)))
	return f
}

// Begin marks the file as being downloaded and registers one in-flight segment.
func (f *File) Begin() {
	f.state.CompareAndSwap(int32(FileIdle), int32(FileDownloading))
	f.inFlight.Add(1)
}

// Finish releases an in-flight segment. Neither counter drops below zero.
func (f *File) Finish() {
	decrementFloor(&f.inFlight)
	decrementFloor(&f.remaining)
}

func decrementFloor(v *atomic.Int32) {
	for {
		cur := v.Load()
		if cur <= 0 {
			return
		}
		if v.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// RecordDecoded adds a segment's decoded bytes to the file.
func (f *File) RecordDecoded(seg *Segment) {
	n := seg.DecodedSize()
	if n == 0 {
		return
	}

	f.mu.Lock()
	added := f.decodedSet.CheckedAdd(uint32(seg.Number))
	f.mu.Unlock()

	if added {
		f.downloaded.Add(n)
	}
}

func (f *File) MarkDamaged()         { f.damaged.Store(true) }
func (f *File) Intact() bool         { return !f.damaged.Load() }
func (f *File) Downloaded() int64    { return f.downloaded.Load() }
func (f *File) Remaining() int       { return int(f.remaining.Load()) }
func (f *File) InFlight() int        { return int(f.inFlight.Load()) }
func (f *File) State() FileState     { return FileState(f.state.Load()) }
func (f *File) SetState(s FileState) { f.state.Store(int32(s)) }

// IsParity reports whether either known name carries the .par2 extension.
func (f *File) IsParity() bool {
	return isParityName(f.Name) || isParityName(f.EmbeddedName())
}

func isParityName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".par2")
}

// DecodedSegments counts distinct segments that decoded successfully.
func (f *File) DecodedSegments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.decodedSet.GetCardinality())
}

// SetEmbedded stores the name and size announced by the first segment's yEnc header.
// It only takes effect once.
func (f *File) SetEmbedded(name string, size int64, sizeKnown bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.embeddedName != "" {
		return false
	}

	f.embeddedName = name
	f.declaredSize = size
	f.sizeKnown = sizeKnown
	return name != ""
}

func (f *File) EmbeddedName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddedName
}

// DeclaredSize returns the size from the yEnc header, if one was seen.
func (f *File) DeclaredSize() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.declaredSize, f.sizeKnown
}

// ManifestBytes is the sum of the NZB segment sizes.
func (f *File) ManifestBytes() int64 {
	var total int64
	for _, s := range f.Segments {
		total += s.Bytes
	}
	return total
}

// SizeHint prefers the embedded size and falls back to the NZB size.
func (f *File) SizeHint() int64 {
	if size, ok := f.DeclaredSize(); ok {
		return size
	}
	return f.ManifestBytes()
}

// MissingSegments lists the segment numbers that never decoded.
func (f *File) MissingSegments() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var missing []int
	for _, s := range f.Segments {
		if !f.decodedSet.Contains(uint32(s.Number)) {
			missing = append(missing, s.Number)
		}
	}
	return missing
}

// SafeName reduces a name to a single path element.
func SafeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}

	base := filepath.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}
