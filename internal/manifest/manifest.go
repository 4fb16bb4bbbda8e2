// Package manifest builds list-of-files manifests for the point-cloud tools.
package manifest

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lidarflow/internal/logging"
)

// FileName is the manifest's base name inside the engine directory.
const FileName = "file_list.txt"

// Manifest is an ordered list of absolute paths to point-cloud files.
type Manifest []string

// IsPointCloud reports whether name has a .las or .laz extension.
func IsPointCloud(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".las", ".laz":
		return true
	}
	return false
}

// List returns every top-level point-cloud file in each directory, with
// directories in caller order and files in enumeration order. Subdirectories
// are not descended into.
func List(dirs ...string) (Manifest, error) {
	var m Manifest
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", dir, err)
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsPointCloud(entry.Name()) {
				continue
			}
			m = append(m, filepath.Join(abs, entry.Name()))
		}
	}
	logging.ManifestDebug("listed %d point-cloud files in %d directories", len(m), len(dirs))
	return m, nil
}

// Write replaces the file at path with one entry per line.
func Write(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, p := range m {
		if _, err := w.WriteString(p + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("write manifest: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	logging.ManifestDebug("wrote %d entries to %s", len(m), path)
	return nil
}

// Read loads a manifest written by Write. Blank lines are skipped.
func Read(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var m Manifest
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			m = append(m, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// DuplicateInputError reports two source files that would collide in a flat
// working copy.
type DuplicateInputError struct {
	Name  string
	First string
	Other string
}

func (e *DuplicateInputError) Error() string {
	return fmt.Sprintf("duplicate input file name %s: %s and %s", e.Name, e.First, e.Other)
}

// Discover walks root recursively and returns every point-cloud file, sorted
// by path. Directories whose absolute path is in skip are not entered.
// Basenames must be unique across the whole tree.
func Discover(root string, skip ...string) (Manifest, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		abs, err := filepath.Abs(s)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", s, err)
		}
		skipped[abs] = true
	}

	var m Manifest
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRoot && skipped[path] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsPointCloud(d.Name()) {
			m = append(m, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	sort.Strings(m)

	seen := make(map[string]string, len(m))
	for _, p := range m {
		key := strings.ToLower(filepath.Base(p))
		if first, ok := seen[key]; ok {
			return nil, &DuplicateInputError{Name: filepath.Base(p), First: first, Other: p}
		}
		seen[key] = p
	}

	logging.ManifestDebug("discovered %d point-cloud files under %s", len(m), absRoot)
	return m, nil
}
