// internal/discovery/git.go
package discovery

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ChangedFiles returns the absolute paths of the files that differ from HEAD
// in the git work tree containing dir: modified, staged and untracked files.
// Deleted files are left out since there is nothing to analyze.
func ChangedFiles(dir string) (map[string]struct{}, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository for %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening work tree for %s: %w", dir, err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading git status for %s: %w", dir, err)
	}

	root := wt.Filesystem.Root()
	changed := make(map[string]struct{}, len(status))
	for name, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			continue
		}
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		changed[filepath.Join(root, filepath.FromSlash(name))] = struct{}{}
	}
	return changed, nil
}

// changeFilter returns a predicate over discovered paths. It keeps every
// path unless discovery is restricted to changed files.
func (d *Discoverer) changeFilter(root string, isDir bool) (func(string) bool, error) {
	if !d.changedOnly {
		return func(string) bool { return true }, nil
	}
	dir := root
	if !isDir {
		dir = filepath.Dir(root)
	}
	changed, err := ChangedFiles(dir)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Restricting discovery to changed files")
	return func(path string) bool {
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		_, ok := changed[abs]
		return ok
	}, nil
}
