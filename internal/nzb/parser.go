package nzb

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func Parse(r io.Reader) (*Model, error) {
	var model Model
	decoder := xml.NewDecoder(r)
	// NZBs in the wild declare all sorts of encodings, the markup itself is ASCII
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(&model); err != nil {
		return nil, fmt.Errorf("parse nzb: %w", err)
	}

	return &model, nil
}

func ParseFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// ReleaseName is the NZB file name without directory and .nzb extension.
func ReleaseName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".nzb") {
		base = base[:len(base)-len(ext)]
	}
	return base
}
