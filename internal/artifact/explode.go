package artifact

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorruptArchive marks an archive that cannot be unpacked or that
// lacks the required descriptor.
var ErrCorruptArchive = errors.New("corrupt application archive")

// Explode unpacks the archive into targetDir, preserving directory
// structure. Any existing content at targetDir is replaced. The unpacked
// tree must contain the application descriptor at its root.
func (s *Store) Explode(archivePath, targetDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(archivePath), err)
	}
	defer reader.Close()

	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("clear target dir: %w", err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	for _, file := range reader.File {
		if err := extractFile(file, targetDir); err != nil {
			return err
		}
	}

	if _, err := os.Stat(DescriptorPath(targetDir)); err != nil {
		return fmt.Errorf("%w: %s: missing %s", ErrCorruptArchive, filepath.Base(archivePath), DescriptorName)
	}
	return nil
}

func extractFile(file *zip.File, targetDir string) error {
	// Reject entries that would escape the target directory.
	cleaned := filepath.Clean(file.Name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || filepath.IsAbs(cleaned) {
		return fmt.Errorf("%w: illegal entry path %q", ErrCorruptArchive, file.Name)
	}
	target := filepath.Join(targetDir, cleaned)

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}

	in, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: read entry %q: %v", ErrCorruptArchive, file.Name, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create entry file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: extract entry %q: %v", ErrCorruptArchive, file.Name, err)
	}
	return out.Close()
}
