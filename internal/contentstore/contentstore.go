// Package contentstore implements the Content Store (CS) contract of
// spec §4.6: a versioned, commit-addressable file repository rooted at
// a local directory, backed by the real `git` binary.
//
// Grounded on steveyegge-beads/internal/git/gitdir.go, which shells out
// to git via os/exec rather than linking a Go git implementation, and on
// original_source/app/service/git_manage_service/git_poc.py, which wraps
// the same porcelain commands (log, show, merge-file) via GitPython.
package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/noteforge/noteforge/internal/types"
)

// Store is the CS contract consumed by the Note Coordinator and the
// Reconciler.
type Store interface {
	// WriteAndCommit writes path atomically under the repository root
	// and commits it as author, returning the new commit hash.
	WriteAndCommit(ctx context.Context, path, content, author, message string) (string, error)

	// ReadCurrentContent returns the working-tree content of path, or
	// "" if the file does not exist.
	ReadCurrentContent(ctx context.Context, path string) (string, error)

	// ReadAtCommit returns path's content as of hash, for recovering
	// the ancestor blob a three-way merge needs (spec §9 "Three-way
	// merge" — exposed as a CS primitive beyond the six operations
	// §4.6 names as a minimum, since reconstructing a historical blob
	// from diff(hash, path) patches alone would require a full apply
	// chain the coordinator has no business doing).
	ReadAtCommit(ctx context.Context, hash, path string) (string, error)

	// EnumerateFiles lists every *.md file under the repository root,
	// relative to it and POSIX-separated, skipping hidden directories
	// and __pycache__.
	EnumerateFiles(ctx context.Context) ([]string, error)

	// FileHistory returns the commits that touched path, newest first,
	// with Diff left unset (callers fill it in via Diff, possibly
	// concurrently).
	FileHistory(ctx context.Context, path string) ([]types.Commit, error)

	// Diff returns the patch for commit hash restricted to path,
	// against its parent. A commit with no parent returns
	// types.InitialCommitDiff.
	Diff(ctx context.Context, hash, path string) (string, error)

	// MergeThreeWay performs a line-level three-way merge equivalent to
	// `git merge-file -p`. conflict is true when the merged text embeds
	// conflict markers.
	MergeThreeWay(ctx context.Context, base, local, remote string) (conflict bool, merged string, err error)

	// LastCommitHash returns the most recent commit hash touching path,
	// or "" if path has never been committed.
	LastCommitHash(ctx context.Context, path string) (string, error)

	// Root returns the repository's working directory.
	Root() string
}

// GitStore is the Store implementation backed by a local git
// repository.
type GitStore struct {
	root string
}

// Open returns a GitStore rooted at dir, initializing a git repository
// there if one does not already exist (spec §4.6 "Initialization").
func Open(ctx context.Context, dir string) (*GitStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content store root: %w", err)
	}
	s := &GitStore{root: dir}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat .git: %w", err)
		}
		if _, _, err := s.run(ctx, "init"); err != nil {
			return nil, fmt.Errorf("git init: %w", err)
		}
		if _, _, err := s.run(ctx, "config", "user.name", "noteforge"); err != nil {
			return nil, fmt.Errorf("git config user.name: %w", err)
		}
		if _, _, err := s.run(ctx, "config", "user.email", "noteforge@local"); err != nil {
			return nil, fmt.Errorf("git config user.email: %w", err)
		}
	}
	return s, nil
}

func (s *GitStore) Root() string { return s.root }

func (s *GitStore) run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", s.root}, args...)...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return out.String(), errBuf.String(), err
}

// authorString builds the synthetic git author beads' teacher-adjacent
// original used: "name <name@company.com>".
func authorString(name string) string {
	return fmt.Sprintf("%s <%s@company.com>", name, name)
}

func (s *GitStore) WriteAndCommit(ctx context.Context, path, content, author, message string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create note directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write note file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", fmt.Errorf("rename note file into place: %w", err)
	}

	if _, stderr, err := s.run(ctx, "add", "--", path); err != nil {
		return "", fmt.Errorf("git add: %w (%s)", err, strings.TrimSpace(stderr))
	}

	// --allow-empty: a save whose content is byte-identical to the
	// current working tree still produces a new commit, so every
	// successful save has a fresh commit_hash to hand back to the
	// client.
	commitArgs := []string{
		"commit", "--allow-empty",
		"--author", authorString(author),
		"-m", message,
		"--", path,
	}
	if _, stderr, err := s.run(ctx, commitArgs...); err != nil {
		return "", fmt.Errorf("git commit: %w (%s)", err, strings.TrimSpace(stderr))
	}

	hash, stderr, err := s.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(hash), nil
}

func (s *GitStore) ReadCurrentContent(_ context.Context, path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read note file: %w", err)
	}
	return string(data), nil
}

func (s *GitStore) ReadAtCommit(ctx context.Context, hash, path string) (string, error) {
	out, stderr, err := s.run(ctx, "show", hash+":"+path)
	if err != nil {
		if strings.Contains(stderr, "does not exist") || strings.Contains(stderr, "exists on disk, but not in") {
			return "", nil
		}
		return "", fmt.Errorf("git show %s:%s: %w (%s)", hash, path, err, strings.TrimSpace(stderr))
	}
	return out, nil
}

func (s *GitStore) EnumerateFiles(_ context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if name == ".git" || strings.HasPrefix(name, ".") || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".md") {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate content store files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

const historyFieldSep = "\x1f"

func (s *GitStore) FileHistory(ctx context.Context, path string) ([]types.Commit, error) {
	format := strings.Join([]string{"%H", "%an", "%aI", "%s"}, historyFieldSep)
	out, stderr, err := s.run(ctx, "log", "--follow", "--format="+format, "--", path)
	if err != nil {
		// A path with no commits yet is not an error: it simply has no
		// history.
		if strings.Contains(stderr, "unknown revision") || strings.TrimSpace(out) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("git log: %w (%s)", err, strings.TrimSpace(stderr))
	}
	var commits []types.Commit
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, historyFieldSep, 4)
		if len(fields) != 4 {
			continue
		}
		ts, parseErr := time.Parse(time.RFC3339, fields[2])
		if parseErr != nil {
			ts = time.Time{}
		}
		commits = append(commits, types.Commit{
			Hash:    fields[0],
			Author:  fields[1],
			Date:    ts,
			Message: fields[3],
		})
	}
	return commits, nil
}

func (s *GitStore) hasParent(ctx context.Context, hash string) bool {
	_, _, err := s.run(ctx, "rev-parse", "--verify", "--quiet", hash+"^")
	return err == nil
}

func (s *GitStore) Diff(ctx context.Context, hash, path string) (string, error) {
	if !s.hasParent(ctx, hash) {
		return types.InitialCommitDiff, nil
	}
	out, stderr, err := s.run(ctx, "show", "--pretty=format:", hash, "--", path)
	if err != nil {
		return "", fmt.Errorf("git show: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(out), nil
}

func (s *GitStore) LastCommitHash(ctx context.Context, path string) (string, error) {
	out, stderr, err := s.run(ctx, "log", "-n", "1", "--format=%H", "--", path)
	if err != nil {
		if strings.TrimSpace(out) == "" {
			return "", nil
		}
		return "", fmt.Errorf("git log: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(out), nil
}
