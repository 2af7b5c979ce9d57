package extraction

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/datallboy/nzbweaver/internal/platform"
)

// 7z file signature (magic bytes)
var sevenZipSignature = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}

type CLI7z struct {
	BinaryPath string
}

// NewCLI7z creates a new 7z extractor. Without a configured binary both
// '7z' and '7za' (the standalone version) are tried.
func NewCLI7z(configured string) (*CLI7z, error) {
	path, err := platform.ResolveBinary(configured, "7z", "7za")
	if err != nil {
		return nil, err
	}
	return &CLI7z{BinaryPath: path}, nil
}

// Name returns the extractor name
func (z *CLI7z) Name() string {
	return "7-Zip"
}

// CanExtract checks if the file is a 7z archive or the first volume of a split one
func (z *CLI7z) CanExtract(filePath string) (bool, error) {
	lower := strings.ToLower(filepath.Base(filePath))

	if m := sevenZipVolume.FindStringSubmatch(lower); m != nil {
		if volumeNumber(m[2]) != 1 {
			return false, nil
		}
	} else if !strings.HasSuffix(lower, ".7z") {
		return false, nil
	}

	// Verify 7z signature
	is7z, err := hasSignature(filePath, sevenZipSignature)
	if err != nil {
		return false, fmt.Errorf("failed to verify 7z signature: %w", err)
	}

	return is7z, nil
}

// Extract extracts the 7z archive to the destination directory
func (z *CLI7z) Extract(ctx context.Context, archivePath, destDir, password string) ([]string, error) {
	return baseExtract(ctx, archivePath, destDir, func(workDir string) *exec.Cmd {
		// 7z x -o<destination> -y <archive>
		// x = extract with full paths
		// -o = output directory (no space between -o and path)
		// -y = assume yes on all queries
		// -p = password, an empty one keeps 7z from prompting
		args := []string{"x", "-o" + workDir, "-y", "-p" + password, archivePath}
		return exec.CommandContext(ctx, z.BinaryPath, args...)
	})
}
