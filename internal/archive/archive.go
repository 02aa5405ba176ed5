// Package archive extracts downloaded zip archives in place. Each remote
// archive holds a single tabular payload file which is written next to the
// archive; the caller deletes the archive afterwards.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unzip extracts every file in the archive into destDir. Entry names are
// validated against directory traversal before any write.
func Unzip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if err := extractEntry(entry, destDir); err != nil {
			return fmt.Errorf("failed to extract %s from %s: %w", entry.Name, archivePath, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(entry.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry escapes destination directory")
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return nil
}
