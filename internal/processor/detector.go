package processor

import (
	"fmt"
	"path/filepath"

	"github.com/datallboy/nzbweaver/internal/extraction"
	"github.com/datallboy/nzbweaver/internal/infra/config"
)

// Manager handles multiple extractors and determines which to use
type Manager struct {
	extractors []extraction.Extractor
}

// Job pairs an archive set with the extractor that unpacks it.
type Job struct {
	Set       extraction.ArchiveSet
	Extractor extraction.Extractor
}

// NewManager creates a new extraction manager and initializes available extractors
func NewManager(cfg config.DownloadConfig) *Manager {
	m := &Manager{}

	// Try to initialize each extractor
	// If the binary isn't available, skip it

	if unrar, err := extraction.NewCLIUnrar(cfg.UnrarBin); err == nil {
		m.extractors = append(m.extractors, unrar)
	}

	if unzip, err := extraction.NewCLIUnzip(); err == nil {
		m.extractors = append(m.extractors, unzip)
	}

	if sevenZ, err := extraction.NewCLI7z(cfg.SevenZipBin); err == nil {
		m.extractors = append(m.extractors, sevenZ)
	}

	return m
}

// NewManagerWith uses exactly the given extractors.
func NewManagerWith(extractors ...extraction.Extractor) *Manager {
	return &Manager{extractors: extractors}
}

// AvailableExtractors returns the names of available extractors
func (m *Manager) AvailableExtractors() []string {
	names := make([]string, len(m.extractors))
	for i, ext := range m.extractors {
		names[i] = ext.Name()
	}
	return names
}

// HasExtractors returns true if any extractors are available
func (m *Manager) HasExtractors() bool {
	return len(m.extractors) > 0
}

// DetectArchives scans dir for archive sets. Sets no extractor can handle
// are returned separately.
func (m *Manager) DetectArchives(dir string) (jobs []Job, unhandled []extraction.ArchiveSet, err error) {
	sets, err := extraction.FindSets(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, set := range sets {
		var chosen extraction.Extractor

		// Try each extractor to see if it can handle this archive
		for _, extractor := range m.extractors {
			canExtract, err := extractor.CanExtract(set.First)
			if err != nil {
				return nil, nil, fmt.Errorf("error checking if %s can extract %s: %w",
					extractor.Name(), filepath.Base(set.First), err)
			}

			if canExtract {
				chosen = extractor
				break // Found a matching extractor, move to next set
			}
		}

		if chosen == nil {
			unhandled = append(unhandled, set)
			continue
		}
		jobs = append(jobs, Job{Set: set, Extractor: chosen})
	}

	return jobs, unhandled, nil
}
