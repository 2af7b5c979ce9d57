package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies an archive format family.
type Kind string

const (
	KindRAR      Kind = "rar"
	KindSevenZip Kind = "7z"
	KindZIP      Kind = "zip"
)

// ArchiveSet is one logical archive, possibly split over several volumes.
type ArchiveSet struct {
	Kind    Kind
	First   string   // path of the volume handed to the extractor
	Volumes []string // every volume belonging to the set, First included
}

var (
	partRar        = regexp.MustCompile(`(?i)^(.+)\.part(\d+)\.rar$`)
	plainRar       = regexp.MustCompile(`(?i)^(.+)\.rar$`)
	oldRarVolume   = regexp.MustCompile(`(?i)^(.+)\.r(\d{2,3})$`)
	sevenZip       = regexp.MustCompile(`(?i)^(.+)\.7z$`)
	sevenZipVolume = regexp.MustCompile(`(?i)^(.+)\.7z\.(\d{3})$`)
	plainZip       = regexp.MustCompile(`(?i)^(.+)\.zip$`)
	zipVolume      = regexp.MustCompile(`(?i)^(.+)\.z(\d{2})$`)
)

func volumeNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// FindSets scans dir (not recursively) for archive sets. Volumes without a
// recognizable first volume are ignored.
func FindSets(dir string) ([]ArchiveSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s for archives: %w", dir, err)
	}

	sets := make(map[string]*ArchiveSet)
	add := func(kind Kind, base, name string, first bool) {
		key := string(kind) + "\x00" + strings.ToLower(base)
		set, ok := sets[key]
		if !ok {
			set = &ArchiveSet{Kind: kind}
			sets[key] = set
		}
		path := filepath.Join(dir, name)
		set.Volumes = append(set.Volumes, path)
		if first {
			set.First = path
		}
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()

		if m := partRar.FindStringSubmatch(name); m != nil {
			add(KindRAR, m[1], name, volumeNumber(m[2]) == 1)
		} else if m := plainRar.FindStringSubmatch(name); m != nil {
			add(KindRAR, m[1], name, true)
		} else if m := oldRarVolume.FindStringSubmatch(name); m != nil {
			add(KindRAR, m[1], name, false)
		} else if m := sevenZipVolume.FindStringSubmatch(name); m != nil {
			add(KindSevenZip, m[1], name, volumeNumber(m[2]) == 1)
		} else if m := sevenZip.FindStringSubmatch(name); m != nil {
			add(KindSevenZip, m[1], name, true)
		} else if m := plainZip.FindStringSubmatch(name); m != nil {
			add(KindZIP, m[1], name, true)
		} else if m := zipVolume.FindStringSubmatch(name); m != nil {
			add(KindZIP, m[1], name, false)
		}
	}

	var out []ArchiveSet
	for _, set := range sets {
		if set.First == "" {
			continue
		}
		sort.Strings(set.Volumes)
		out = append(out, *set)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].First < out[j].First })
	return out, nil
}
