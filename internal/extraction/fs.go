package extraction

import (
	"io"
	"os"
	"path/filepath"
)

// moveCrossDevice handles moving files between different mount points/filesystems
func moveCrossDevice(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	tempDest := filepath.Join(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp")

	dst, err := os.Create(tempDest)
	if err != nil {
		return err
	}
	defer dst.Close()

	// Copy the contents. io.Copy uses sendfile(2) where available.
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tempDest)
		return err
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(tempDest)
		return err
	}

	// Explicitly close before deleting the source
	src.Close()
	dst.Close()

	if err := os.Rename(tempDest, destPath); err != nil {
		os.Remove(tempDest)
		return err
	}

	// Remove the original file only after copy success
	return os.Remove(sourcePath)
}

// moveFile handles the logic of moving a file, falling back to cross-device copy if rename fails.
func moveFile(source, dest string) error {
	// Try simple rename first
	err := os.Rename(source, dest)
	if err == nil {
		return nil
	}

	// If it fails (likely cross-device), use our helper
	return moveCrossDevice(source, dest)
}
