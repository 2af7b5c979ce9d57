package nzb

import (
	"strings"

	"github.com/datallboy/nzbweaver/internal/domain"
)

// ToRelease turns the parsed NZB into the in-memory release tree.
// Segments without a number, size or message id are dropped, as are
// duplicate segment numbers (the first one wins).
func ToRelease(model *Model, name, destination string) (*domain.Release, error) {
	var files []*domain.File

	for _, raw := range model.Files {
		seen := make(map[int]struct{}, len(raw.Segments))
		var segments []*domain.Segment

		for _, s := range raw.Segments {
			if s.Number <= 0 || s.Bytes <= 0 || strings.TrimSpace(s.MessageID) == "" {
				continue
			}
			if _, dup := seen[s.Number]; dup {
				continue
			}
			seen[s.Number] = struct{}{}

			segments = append(segments, &domain.Segment{
				Number:    s.Number,
				Bytes:     s.Bytes,
				ArticleID: strings.TrimSpace(s.MessageID),
			})
		}

		if len(segments) == 0 {
			continue
		}

		files = append(files, domain.NewFile(
			len(files),
			FileNameFromSubject(raw.Subject),
			raw.Subject,
			raw.Groups,
			segments,
		))
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	return domain.NewRelease(name, destination, model.Password(), files), nil
}
