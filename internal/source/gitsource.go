// Package source feeds the apps directory from remote locations. The
// git source polls a repository and places the application archives it
// contains into the apps directory with the atomic-rename convention,
// where the regular poll cycle picks them up.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitSource mirrors application archives out of a git repository.
type GitSource struct {
	Store    *artifact.Store
	Logger   *slog.Logger
	RepoURL  string
	Branch   string
	Path     string // subdirectory within the repo holding archives; "" means repo root
	CacheDir string
	Interval time.Duration

	lastSeen string
}

// NewGitSource creates a git artifact source.
func NewGitSource(store *artifact.Store, logger *slog.Logger, repoURL, branch, path string, interval time.Duration) *GitSource {
	if branch == "" {
		branch = "main"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &GitSource{
		Store:    store,
		Logger:   logger,
		RepoURL:  repoURL,
		Branch:   branch,
		Path:     path,
		CacheDir: "./.deckhand-cache",
		Interval: interval,
	}
}

// Run polls the repository until the context is cancelled.
func (s *GitSource) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	if err := s.Sync(); err != nil {
		s.Logger.Error("Failed to sync artifact source", "repo", s.RepoURL, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("Git artifact source stopped")
			return
		case <-ticker.C:
			if err := s.Sync(); err != nil {
				s.Logger.Error("Failed to sync artifact source", "repo", s.RepoURL, "error", err)
			}
		}
	}
}

// Sync fetches the repository head and, when it moved, places every
// archive under Path into the apps directory.
func (s *GitSource) Sync() error {
	repoPath := filepath.Join(s.CacheDir, sanitizeRepoDir(s.RepoURL))

	var repo *git.Repository
	var err error
	if _, statErr := os.Stat(repoPath); os.IsNotExist(statErr) {
		s.Logger.Info("Cloning artifact repo", "repo", s.RepoURL)
		repo, err = git.PlainClone(repoPath, false, &git.CloneOptions{
			URL:      s.RepoURL,
			Progress: nil,
		})
	} else {
		repo, err = git.PlainOpen(repoPath)
	}
	if err != nil {
		return fmt.Errorf("git error: %w", err)
	}

	err = repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		Progress:   nil,
		RefSpecs:   []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("fetch error: %w", err)
	}

	remoteRefName := plumbing.NewRemoteReferenceName("origin", s.Branch)
	remoteRef, err := repo.Reference(remoteRefName, true)
	if err != nil {
		return fmt.Errorf("remote branch not found: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree error: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Force: true}); err != nil {
		return fmt.Errorf("checkout error: %w", err)
	}

	commit := remoteRef.Hash().String()
	if commit == s.lastSeen {
		return nil
	}
	s.Logger.Info("New artifact commit detected", "repo", s.RepoURL, "commit", commit)

	if err := s.placeArchives(filepath.Join(repoPath, s.Path)); err != nil {
		return err
	}
	s.lastSeen = commit
	return nil
}

// placeArchives copies every archive in dir into the apps directory.
func (s *GitSource) placeArchives(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read artifact dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, artifact.PackagedSuffix) {
			continue
		}
		source := filepath.Join(dir, name)
		if same, err := sameContent(source, filepath.Join(s.Store.Root(), name)); err == nil && same {
			// Unchanged archive; re-placing it would only bump the mtime
			// and force a pointless redeploy.
			continue
		}
		if _, err := s.Store.PlaceArchive(source, name); err != nil {
			s.Logger.Error("Failed to place archive", "archive", name, "error", err)
			continue
		}
		s.Logger.Info("Placed archive from artifact repo", "archive", name)
	}
	return nil
}

// sameContent reports whether two files have identical contents.
func sameContent(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}
	hashA, err := fileDigest(a)
	if err != nil {
		return false, err
	}
	hashB, err := fileDigest(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sanitizeRepoDir turns a repo URL into a usable cache directory name.
func sanitizeRepoDir(repoURL string) string {
	replacer := strings.NewReplacer("://", "-", "/", "-", ":", "-", "@", "-")
	return strings.Trim(replacer.Replace(repoURL), "-")
}
