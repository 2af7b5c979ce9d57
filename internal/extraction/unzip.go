package extraction

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/datallboy/nzbweaver/internal/platform"
)

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

type CLIUnzip struct {
	BinaryPath string
}

func NewCLIUnzip() (*CLIUnzip, error) {
	path, err := platform.ResolveBinary("", "unzip")
	if err != nil {
		return nil, err
	}
	return &CLIUnzip{BinaryPath: path}, nil
}

// Name returns the extractor name
func (u *CLIUnzip) Name() string {
	return "ZIP"
}

// CanExtract checks if the file is a ZIP archive
func (u *CLIUnzip) CanExtract(filePath string) (bool, error) {
	lower := strings.ToLower(filepath.Base(filePath))

	// Extension check
	if !strings.HasSuffix(lower, ".zip") {
		return false, nil
	}

	// Verify ZIP signature
	isZip, err := hasSignature(filePath, zipSignatures...)
	if err != nil {
		return false, fmt.Errorf("failed to verify ZIP signature: %w", err)
	}

	return isZip, nil
}

// Extract extracts the ZIP archive to the destination directory
func (u *CLIUnzip) Extract(ctx context.Context, archivePath, destDir, password string) ([]string, error) {
	return baseExtract(ctx, archivePath, destDir, func(workDir string) *exec.Cmd {
		// unzip -o -q [-P pass] <archive> -d <destination>
		// -o = overwrite existing files
		// -q = quiet mode
		args := []string{"-o", "-q"}
		if password != "" {
			args = append(args, "-P", password)
		}
		args = append(args, archivePath, "-d", workDir)
		return exec.CommandContext(ctx, u.BinaryPath, args...)
	})
}
