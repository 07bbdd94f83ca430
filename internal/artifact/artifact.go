// Package artifact models the on-disk apps directory: packaged archives,
// exploded application directories, anchor marker files, and the naming
// rules tying them together.
package artifact

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// PackagedSuffix is the packaging extension for application archives.
	PackagedSuffix = ".zip"

	// AnchorSuffix is appended to an application name to form its anchor
	// marker file. The anchor's presence means "fully deployed"; deleting
	// it asks the orchestrator to undeploy.
	AnchorSuffix = "-anchor.txt"

	// DescriptorName is the required descriptor at the root of every
	// exploded application directory. Its mtime drives redeploys.
	DescriptorName = "app.toml"

	// partSuffix marks an archive still being copied into place.
	partSuffix = ".part"
)

// Kind distinguishes packaged archives from exploded directories.
type Kind string

const (
	Packaged Kind = "packaged"
	Exploded Kind = "exploded"
)

// Artifact is an ephemeral view of one deployable item, recomputed every
// poll cycle. Location is the canonical absolute path of the archive file
// or the exploded directory.
type Artifact struct {
	Location  string
	Kind      Kind
	Timestamp time.Time
}

// Name derives the application name for the artifact. Archives strip the
// packaging suffix exactly once ("x.zip.zip" deploys as "x.zip");
// directories deploy under their own name verbatim.
func (a Artifact) Name() string {
	base := filepath.Base(a.Location)
	if a.Kind == Packaged {
		return strings.TrimSuffix(base, PackagedSuffix)
	}
	return base
}

// AppNameFromArchive applies the suffix-stripping rule to an archive
// file name.
func AppNameFromArchive(fileName string) string {
	return strings.TrimSuffix(filepath.Base(fileName), PackagedSuffix)
}
