package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/datallboy/nzbweaver/internal/platform"
)

// RAR file signatures (magic bytes)
var rarSignatures = [][]byte{
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00},       // RAR 1.5+
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}, // RAR 5.0+
}

type CLIUnrar struct {
	BinaryPath string
}

// NewCLIUnrar creates a new UnRAR extractor. An empty configured value
// falls back to unrar from PATH.
func NewCLIUnrar(configured string) (*CLIUnrar, error) {
	path, err := platform.ResolveBinary(configured, "unrar")
	if err != nil {
		return nil, err
	}
	return &CLIUnrar{BinaryPath: path}, nil
}

// Name returns the extractor name
func (u *CLIUnrar) Name() string {
	return "RAR"
}

// CanExtract checks if the file is the first volume of a RAR archive by verifying:
// 1. File extension (.rar)
// 2. For multi-part archives, that this is part 1
// 3. Magic bytes (file signature)
func (u *CLIUnrar) CanExtract(filePath string) (bool, error) {
	lower := strings.ToLower(filepath.Base(filePath))

	// Quick extension check first
	if !strings.HasSuffix(lower, ".rar") {
		return false, nil
	}

	// For multi-part archives, only process the first part
	if m := partRar.FindStringSubmatch(lower); m != nil && volumeNumber(m[2]) != 1 {
		return false, nil
	}

	// Verify RAR signature (magic bytes)
	isRar, err := hasSignature(filePath, rarSignatures...)
	if err != nil {
		return false, fmt.Errorf("failed to verify RAR signature: %w", err)
	}

	return isRar, nil
}

// Extract extracts the RAR archive to the destination directory
func (u *CLIUnrar) Extract(ctx context.Context, archivePath, destDir, password string) ([]string, error) {
	return baseExtract(ctx, archivePath, destDir, func(workDir string) *exec.Cmd {
		// unrar x -o+ -y <archive> <destination>
		// x = extract with full paths
		// -o+ = overwrite existing files
		// -y = assume yes on all queries (non-interactive)
		// -kb = keep broken
		args := []string{"x", "-o+", "-y", "-kb"}

		if password != "" {
			args = append(args, "-p"+password)
		} else {
			args = append(args, "-p-")
		}

		args = append(args, archivePath, workDir+string(filepath.Separator))

		return exec.CommandContext(ctx, u.BinaryPath, args...)
	})
}

// hasSignature reports whether the file starts with one of sigs.
func hasSignature(filePath string, sigs ...[]byte) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	longest := 0
	for _, sig := range sigs {
		longest = max(longest, len(sig))
	}

	header := make([]byte, longest)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return false, nil // empty file
		}
		return false, err
	}
	header = header[:n]

	// Check against known signatures
	for _, sig := range sigs {
		if bytes.HasPrefix(header, sig) {
			return true, nil
		}
	}

	return false, nil
}
