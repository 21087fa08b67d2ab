// Package repofetch clones a public source repository into a scoped
// temporary directory and guarantees its removal on every exit path,
// including Windows-like filesystems where a read-only bit can block
// unlink (§4.3 shared RepoFetcher step, §5, §9).
package repofetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"

	"github.com/kolipakulaharsha/guardian/internal/core"
)

// tempPrefix matches the "guardian_" OS-temp-root prefix required by §6.
const tempPrefix = "guardian_"

// RepoFetcher clones repositories into their own temp directories. Each
// ClonedRepo is owned exclusively by whoever called Clone; nothing shares it
// across components (§5 "Shared resources").
type RepoFetcher struct {
	// CloneTimeout bounds how long a single clone may run.
	CloneTimeout time.Duration
}

// ClonedRepo is a live checkout plus the means to clean it up.
type ClonedRepo struct {
	// URL is the repository URL that was cloned.
	URL string
	// Path is the local temp directory holding the checkout's root.
	Path string

	closed bool
}

// Clone performs a shallow (depth 1) clone of repoURL into a fresh temp
// directory. Compliance auditing and QA both read tip-of-branch content only,
// so full history is never required.
func (f *RepoFetcher) Clone(ctx context.Context, repoURL string) (*ClonedRepo, error) {
	if repoURL == "" {
		return nil, fmt.Errorf("%w: empty repository URL", core.ErrIngest)
	}
	dir, err := os.MkdirTemp("", tempPrefix+"repo-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", core.ErrIngest, err)
	}

	timeout := f.CloneTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err = git.PlainCloneContext(cctx, dir, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	if err != nil {
		_ = removeAll(dir)
		return nil, fmt.Errorf("%w: clone %s: %v", core.ErrIngest, repoURL, err)
	}
	log.Info().Str("stage", "repo_fetch_done").Str("repo_url", repoURL).Str("path", dir).Msg("repository cloned")
	return &ClonedRepo{URL: repoURL, Path: dir}, nil
}

// Close removes the cloned repository's temp directory. It is idempotent and
// safe to call multiple times or via defer immediately after Clone succeeds
// (the "scoped acquisition pattern" of §9).
func (c *ClonedRepo) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	return removeAll(c.Path)
}

// removeAll deletes dir, retrying with a read-only-bit clear on failure to
// support Windows-like filesystems where a read-only file blocks unlink
// (§4.3 "retry unlink with read-only-bit clearing").
func removeAll(dir string) error {
	if dir == "" {
		return nil
	}
	err := os.RemoveAll(dir)
	if err == nil {
		return nil
	}
	if runtime.GOOS != "windows" {
		return err
	}
	clearErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		_ = os.Chmod(path, 0o666)
		return nil
	})
	if clearErr != nil {
		return err
	}
	return os.RemoveAll(dir)
}
