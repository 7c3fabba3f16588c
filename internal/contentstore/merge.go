package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// MergeThreeWay shells out to `git merge-file -p`, the line-level
// three-way merge primitive spec §4.6 requires. It writes the three
// versions to scratch files under the repository root (mirroring
// original_source/.../git_poc.py's merge_contents, which does the same
// for GitPython's lack of an in-memory merge-file binding) and removes
// them afterward regardless of outcome.
func (s *GitStore) MergeThreeWay(ctx context.Context, base, local, remote string) (bool, string, error) {
	dir, err := os.MkdirTemp(s.root, ".merge-*")
	if err != nil {
		return false, "", fmt.Errorf("create merge scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	basePath := filepath.Join(dir, "base")
	localPath := filepath.Join(dir, "local")
	remotePath := filepath.Join(dir, "remote")

	for path, content := range map[string]string{
		basePath:   base,
		localPath:  local,
		remotePath: remote,
	} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return false, "", fmt.Errorf("write merge scratch file: %w", err)
		}
	}

	// git merge-file -p <current> <base> <other>: merges "other" into
	// "current" using "base" as the common ancestor, printing the
	// result to stdout instead of rewriting <current> in place.
	cmd := exec.CommandContext(ctx, "git", "merge-file", "-p", localPath, basePath, remotePath)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil
	runErr := cmd.Run()

	merged := out.String()
	if runErr == nil {
		return false, merged, nil
	}

	var exitErr *exec.ExitError
	if exitErrOK := errorsAsExitError(runErr, &exitErr); exitErrOK {
		if exitErr.ExitCode() > 0 {
			// Positive exit code: clean merge impossible, conflict
			// markers were embedded in stdout.
			return true, merged, nil
		}
	}
	return false, "", fmt.Errorf("git merge-file: %w", runErr)
}

// errorsAsExitError reports whether err is itself an *exec.ExitError
// (a direct type assertion; wrapped errors are not unwrapped) and, if
// so, stores it in target.
func errorsAsExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
