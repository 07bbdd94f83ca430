package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store is the apps directory. All paths it hands out are absolute.
type Store struct {
	root string
}

// NewStore opens the apps directory, creating it if needed. An apps root
// that cannot be created or read is the one fatal condition in this
// system.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve apps dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create apps dir: %w", err)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, fmt.Errorf("read apps dir: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute apps directory path.
func (s *Store) Root() string {
	return s.root
}

// ListPackaged enumerates application archives in listing order,
// excluding anything still being copied into place.
func (s *Store) ListPackaged() ([]Artifact, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list packaged artifacts: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, PackagedSuffix) {
			continue
		}
		if strings.HasSuffix(name, partSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Raced with an external delete; skip this cycle.
			continue
		}
		artifacts = append(artifacts, Artifact{
			Location:  filepath.Join(s.root, name),
			Kind:      Packaged,
			Timestamp: info.ModTime(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Location < artifacts[j].Location
	})
	return artifacts, nil
}

// ListExploded enumerates exploded application directories in listing
// order. The artifact timestamp is the descriptor mtime when a
// descriptor exists, the directory mtime otherwise.
func (s *Store) ListExploded() ([]Artifact, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list exploded artifacts: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		ts, ok := s.DescriptorMtime(dir)
		if !ok {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			ts = info.ModTime()
		}
		artifacts = append(artifacts, Artifact{
			Location:  dir,
			Kind:      Exploded,
			Timestamp: ts,
		})
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Location < artifacts[j].Location
	})
	return artifacts, nil
}

// PlaceArchive copies the archive at source into the apps directory
// under targetName, writing to a temporary name first and renaming into
// place so a concurrent poll never observes a partial archive.
func (s *Store) PlaceArchive(source, targetName string) (string, error) {
	if targetName == "" {
		targetName = filepath.Base(source)
	}
	if !strings.HasSuffix(targetName, PackagedSuffix) {
		targetName += PackagedSuffix
	}

	target := filepath.Join(s.root, targetName)
	tmp := target + partSuffix

	in, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("open source archive: %w", err)
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("copy archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("flush archive: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("place archive: %w", err)
	}
	return target, nil
}

// ArchivePath returns where the archive for an application name lives.
func (s *Store) ArchivePath(appName string) string {
	return filepath.Join(s.root, appName+PackagedSuffix)
}

// ExplodedDir returns where the exploded directory for an application
// name lives.
func (s *Store) ExplodedDir(appName string) string {
	return filepath.Join(s.root, appName)
}

// DescriptorPath returns the descriptor location inside an exploded
// application directory.
func DescriptorPath(explodedDir string) string {
	return filepath.Join(explodedDir, DescriptorName)
}

// DescriptorMtime reports the descriptor's modification time, if the
// descriptor exists.
func (s *Store) DescriptorMtime(explodedDir string) (time.Time, bool) {
	info, err := os.Stat(DescriptorPath(explodedDir))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// AnchorPath returns the anchor marker file path for an application.
func (s *Store) AnchorPath(appName string) string {
	return filepath.Join(s.root, appName+AnchorSuffix)
}

// WriteAnchor creates the zero-byte anchor marker for a fully deployed
// application.
func (s *Store) WriteAnchor(appName string) error {
	f, err := os.Create(s.AnchorPath(appName))
	if err != nil {
		return fmt.Errorf("write anchor for %s: %w", appName, err)
	}
	return f.Close()
}

// RemoveAnchor deletes the anchor marker. A missing anchor is not an
// error.
func (s *Store) RemoveAnchor(appName string) error {
	err := os.Remove(s.AnchorPath(appName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove anchor for %s: %w", appName, err)
	}
	return nil
}

// AnchorExists reports whether the anchor marker is present.
func (s *Store) AnchorExists(appName string) bool {
	_, err := os.Stat(s.AnchorPath(appName))
	return err == nil
}

// Exists reports whether the given artifact location is still on disk.
func Exists(location string) bool {
	_, err := os.Stat(location)
	return err == nil
}
