package packaging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileEntry is a single file discovered in a role directory.
type FileEntry struct {
	Role    string // owning role
	RelPath string // forward-slash path relative to the role directory
	AbsPath string
}

// ArchivePath is the entry's path inside the package archive.
func (f FileEntry) ArchivePath() string {
	return f.Role + "/" + f.RelPath
}

// SymlinkEscapeError is returned when a symlink inside a role directory
// resolves outside the project.
type SymlinkEscapeError struct {
	Path   string
	Target string
}

func (e *SymlinkEscapeError) Error() string {
	return fmt.Sprintf("packaging: symlink %q resolves to %q which is outside the project", e.Path, e.Target)
}

// EnumerateRole walks a role directory, applies exclusions, and returns the
// files sorted by relative path.
func EnumerateRole(role, roleDir string, userExcludes []string) ([]FileEntry, error) {
	absRoot, err := filepath.Abs(roleDir)
	if err != nil {
		return nil, fmt.Errorf("packaging: resolve role dir: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("packaging: role %q: %w", role, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("packaging: role %q: %s is not a directory", role, absRoot)
	}

	var entries []FileEntry
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("packaging: compute relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if ShouldExclude(rel, userExcludes) || ShouldExclude(rel+"/", userExcludes) {
				return fs.SkipDir
			}
			return nil
		}
		if ShouldExclude(rel, userExcludes) {
			return nil
		}
		entries = append(entries, FileEntry{Role: role, RelPath: rel, AbsPath: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("packaging: walk role %q: %w", role, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

// ValidateSymlinks ensures no symlink among files resolves outside root.
func ValidateSymlinks(root string, files []FileEntry) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("packaging: resolve project dir: %w", err)
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("packaging: eval symlinks on project dir: %w", err)
	}
	rootPrefix := absRoot + string(filepath.Separator)

	for _, f := range files {
		info, err := os.Lstat(f.AbsPath)
		if err != nil {
			return fmt.Errorf("packaging: lstat %q: %w", f.ArchivePath(), err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		resolved, err := filepath.EvalSymlinks(f.AbsPath)
		if err != nil {
			return fmt.Errorf("packaging: resolve symlink %q: %w", f.ArchivePath(), err)
		}
		if resolved != absRoot && !strings.HasPrefix(resolved, rootPrefix) {
			return &SymlinkEscapeError{Path: f.ArchivePath(), Target: resolved}
		}
	}
	return nil
}
