package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datallboy/nzbweaver/internal/domain"
)

// extract unpacks every archive set in the destination and deletes the
// volumes of each set that succeeded.
func (p *Processor) extract(ctx context.Context, rel *domain.Release) error {
	jobs, unhandled, err := p.extractors.DetectArchives(rel.Destination)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	for _, set := range unhandled {
		p.ctx.Logger.Warn("No extractor available for %s", filepath.Base(set.First))
	}

	var failed []string
	for _, job := range jobs {
		name := filepath.Base(job.Set.First)
		p.ctx.Logger.Info("Extracting %s with %s...", name, job.Extractor.Name())

		paths, err := job.Extractor.Extract(ctx, job.Set.First, rel.Destination, rel.Password)
		if err != nil {
			p.ctx.Logger.Error("Extraction of %s failed: %v", name, err)
			failed = append(failed, name)
			continue
		}
		p.ctx.Logger.Info("Extracted %d file(s) from %s", len(paths), name)

		for _, vol := range job.Set.Volumes {
			if err := os.Remove(vol); err != nil {
				p.ctx.Logger.Warn("Could not remove %s: %v", filepath.Base(vol), err)
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrExtractionFailed, strings.Join(failed, ", "))
	}
	return nil
}

// cleanup removes files whose extension is on the configured list.
func (p *Processor) cleanup(rel *domain.Release) {
	cleanupMap := extensionSet(p.ctx.Config.Download.CleanupExtensions)
	if len(cleanupMap) == 0 {
		return
	}

	entries, err := os.ReadDir(rel.Destination)
	if err != nil {
		p.ctx.Logger.Warn("Cleanup skipped: %v", err)
		return
	}

	for _, e := range entries {
		if !e.Type().IsRegular() || !cleanupExtensions(e.Name(), cleanupMap) {
			continue
		}
		if err := os.Remove(filepath.Join(rel.Destination, e.Name())); err != nil {
			p.ctx.Logger.Warn("Could not remove %s: %v", e.Name(), err)
			continue
		}
		p.ctx.Logger.Debug("Removed %s", e.Name())
	}
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// cleanupExtensions checks if a filename matches the user's cleanup list
func cleanupExtensions(fileName string, cleanupMap map[string]struct{}) bool {
	filenameLower := strings.ToLower(fileName)

	ext := filepath.Ext(filenameLower)
	_, exists := cleanupMap[ext]

	return exists
}
