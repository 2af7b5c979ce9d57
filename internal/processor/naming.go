package processor

import (
	"fmt"
	"os"

	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/domain"
	"github.com/datallboy/nzbweaver/internal/par2"
)

// ResolveNames decides the release rename policy from the index parity
// file. It returns the index (nil if there is none) and whether its packets
// could be read. A false second value disables repair.
func (p *Processor) ResolveNames(rel *domain.Release, src app.SegmentSource) (*domain.File, bool) {
	index := FindIndexParity(rel)
	if index == nil {
		rel.SetPolicy(domain.PolicyEmbedded)
		return nil, false
	}

	buf, err := readDecoded(index, src)
	if err != nil {
		p.ctx.Logger.Warn("Cannot read parity index %s: %v", index.Name, err)
		rel.SetPolicy(domain.PolicyEmbedded)
		return index, false
	}

	list, sawMain, err := par2.ParseFileNames(buf)
	if err != nil {
		p.ctx.Logger.Warn("Parity index %s: %v. Repair disabled", index.Name, err)
		rel.SetPolicy(domain.PolicyEmbedded)
		return index, false
	}
	if !sawMain {
		p.ctx.Logger.Debug("Parity index %s has no main packet", index.Name)
	}

	rel.SetPolicy(choosePolicy(rel, index, list))
	return index, true
}

// FindIndexParity picks the single-segment .par2 with the smallest size.
func FindIndexParity(rel *domain.Release) *domain.File {
	var index *domain.File
	for _, f := range rel.Files {
		if !f.IsParity() || len(f.Segments) != 1 {
			continue
		}
		if index == nil || f.SizeHint() < index.SizeHint() {
			index = f
		}
	}
	return index
}

// choosePolicy lets the first file found in the parity list decide.
func choosePolicy(rel *domain.Release, index *domain.File, list par2.FileList) domain.RenamePolicy {
	for _, f := range rel.Files {
		if f == index {
			continue
		}
		if name := f.EmbeddedName(); name != "" && list.Contains(name) {
			return domain.PolicyEmbedded
		}
		if f.Name != "" && list.Contains(f.Name) {
			return domain.PolicyManifest
		}
	}
	return domain.PolicyEmbedded
}

func readDecoded(f *domain.File, src app.SegmentSource) ([]byte, error) {
	var buf []byte
	for _, seg := range f.Segments {
		if seg.DecodedSize() == 0 {
			continue
		}
		data, err := os.ReadFile(src.SegmentPath(f, seg))
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}

	if len(buf) == 0 {
		return nil, fmt.Errorf("no decoded data")
	}
	return buf, nil
}
