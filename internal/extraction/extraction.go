package extraction

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// Extractor unpacks one archive set, given its first volume. The tool finds
// the remaining volumes next to it.
type Extractor interface {
	// Extract unpacks archivePath into destDir. An empty password is passed
	// as "no password" so the tool never prompts. It returns the final paths
	// of the unpacked files.
	Extract(ctx context.Context, archivePath, destDir, password string) ([]string, error)

	// CanExtract reports whether path is a first volume this extractor handles.
	CanExtract(path string) (bool, error)

	Name() string
}

// CmdFactory builds the tool invocation that unpacks into workDir.
type CmdFactory func(workDir string) *exec.Cmd

// baseExtract runs the tool against a scratch directory inside destDir and
// moves every unpacked file up into destDir, dropping the archive's folder
// structure. Nothing is moved unless the tool exits 0.
func baseExtract(ctx context.Context, archivePath, destDir string, factory CmdFactory) ([]string, error) {
	workDir := filepath.Join(destDir, "_extracted"+filepath.Base(archivePath))
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create work dir for %s: %w", filepath.Base(archivePath), err)
	}
	defer os.RemoveAll(workDir)

	output, err := factory(workDir).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w\nOutput: %s", filepath.Base(archivePath), err, string(output))
	}

	return flatten(ctx, workDir, destDir)
}

// flatten moves the regular files below workDir into destDir.
func flatten(ctx context.Context, workDir, destDir string) ([]string, error) {
	var moved []string

	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		target := filepath.Join(destDir, d.Name())
		if err := moveFile(path, target); err != nil {
			return fmt.Errorf("move %s out of the work dir: %w", d.Name(), err)
		}
		moved = append(moved, target)
		return nil
	})

	return moved, err
}
