// Package pathutil provides path validation used at startup: every directory
// the service writes to is probed before the server goes ready, so a
// misconfigured mount fails the boot instead of the first upload.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckDirectoryWritable verifies that path is a writable directory, creating
// it if it does not exist. Writability is probed with a real file; permission
// bits alone lie on network mounts.
func CheckDirectoryWritable(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	info, err := os.Stat(absPath)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", absPath, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access directory %s: %w", absPath, err)
	case !info.IsDir():
		return fmt.Errorf("path %s exists but is not a directory", absPath)
	}

	probe := filepath.Join(absPath, ".lootsift-write-test")
	file, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, err)
	}
	_, writeErr := file.Write([]byte("probe"))
	file.Close()
	os.Remove(probe)
	if writeErr != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, writeErr)
	}
	return nil
}

// CheckFileDirectoryWritable verifies that the directory holding filePath is
// writable. An empty filePath is fine; optional outputs such as the log file
// may be unset.
func CheckFileDirectoryWritable(filePath, fileType string) error {
	if filePath == "" {
		return nil
	}
	dir := filepath.Dir(filePath)
	if dir == "" {
		dir = "."
	}
	if err := CheckDirectoryWritable(dir); err != nil {
		return fmt.Errorf("%s directory check failed: %w", fileType, err)
	}
	return nil
}
