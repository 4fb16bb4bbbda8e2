package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Output directory names, in stage order.
const (
	DirSeparated          = "00_separated"
	DirDeclassified       = "00_declassified"
	DirTiled              = "01_tiled"
	DirGroundCoarse       = "02a_lasground_new_coarse"
	DirGroundFine         = "02b_lasground_new_fine"
	DirHeightCoarse       = "03a_lasheight_coarse"
	DirHeightFine         = "03b_lasheight_fine"
	DirClassifyCoarse     = "04a_lasclassify_coarse"
	DirClassifyFine       = "04b_lasclassify_fine"
	DirRemoveBufferCoarse = "05a_lastile_rm_buffer_coarse"
	DirRemoveBufferFine   = "05b_lastile_rm_buffer_fine"
	DirSeparatedCoarse    = "06a_separated_coarse"
	DirSeparatedFine      = "06b_separated_fine"
	DirGroundClipCoarse   = "07a_ground_clipped_coarse"
	DirGroundClipFine     = "07b_ground_clipped_fine"
	DirGroundMerged       = "08_ground_merged"
	DirGroundDeduplicated = "09_ground_rm_duplicates"
	DirVegNewMerged       = "10_veg_new_merged"
	DirVegNewClipped      = "11_veg_new_clipped"
	DirVegMerged          = "12_veg_merged"
	DirVegDeduplicated    = "13_veg_rm_duplicates"
)

var layoutDirs = []string{
	DirSeparated, DirDeclassified, DirTiled,
	DirGroundCoarse, DirGroundFine,
	DirHeightCoarse, DirHeightFine,
	DirClassifyCoarse, DirClassifyFine,
	DirRemoveBufferCoarse, DirRemoveBufferFine,
	DirSeparatedCoarse, DirSeparatedFine,
	DirGroundClipCoarse, DirGroundClipFine,
	DirGroundMerged, DirGroundDeduplicated,
	DirVegNewMerged, DirVegNewClipped, DirVegMerged, DirVegDeduplicated,
}

// separatedDirs hold one subdirectory per class.
var separatedDirs = []string{DirSeparated, DirSeparatedCoarse, DirSeparatedFine}

// Layout is the output tree under a destination root.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at the absolute form of root.
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve destination %s: %w", root, err)
	}
	return Layout{Root: abs}, nil
}

// Path returns the absolute path of a layout directory.
func (l Layout) Path(name string) string {
	return filepath.Join(l.Root, name)
}

// ClassPath returns the class subdirectory of a separated directory.
func (l Layout) ClassPath(name string, c ClassType) string {
	return filepath.Join(l.Root, name, c.Dir())
}

// Dirs returns the top-level layout directories in stage order.
func (l Layout) Dirs() []string {
	out := make([]string, len(layoutDirs))
	for i, name := range layoutDirs {
		out[i] = l.Path(name)
	}
	return out
}

// All returns every directory of the tree, class subdirectories included.
func (l Layout) All() []string {
	out := l.Dirs()
	for _, name := range separatedDirs {
		for _, c := range Classes {
			out = append(out, l.ClassPath(name, c))
		}
	}
	return out
}

// EnsureTree creates every layout directory. Existing directories are kept.
func (l Layout) EnsureTree() error {
	for _, dir := range l.All() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

var errFound = errors.New("found")

// CheckEmpty fails with *OutputNotEmptyError when any layout directory
// contains a file at any depth. Missing directories are fine.
func (l Layout) CheckEmpty() error {
	for _, dir := range l.Dirs() {
		var found string
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == dir {
					return filepath.SkipDir
				}
				return err
			}
			if !d.IsDir() {
				found = path
				return errFound
			}
			return nil
		})
		switch {
		case errors.Is(err, errFound):
			return &OutputNotEmptyError{Dir: dir, File: found}
		case err != nil:
			return fmt.Errorf("inspect %s: %w", dir, err)
		}
	}
	return nil
}
