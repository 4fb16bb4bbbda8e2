package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("LASF"), 0644))
}

func TestIsPointCloud(t *testing.T) {
	assert.True(t, IsPointCloud("a.las"))
	assert.True(t, IsPointCloud("a.LAZ"))
	assert.True(t, IsPointCloud("/x/y/B.Las"))
	assert.False(t, IsPointCloud("a.txt"))
	assert.False(t, IsPointCloud("las"))
	assert.False(t, IsPointCloud("a.las.bak"))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.las"))
	touch(t, filepath.Join(dir, "b.LAZ"))
	touch(t, filepath.Join(dir, "a.txt"))
	touch(t, filepath.Join(dir, "sub", "c.las"))

	m, err := List(dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, Manifest{
		filepath.Join(dir, "a.las"),
		filepath.Join(dir, "b.LAZ"),
	}, m)
}

func TestList_DirectoryOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	touch(t, filepath.Join(first, "z.las"))
	touch(t, filepath.Join(second, "a.las"))

	m, err := List(first, second)
	require.NoError(t, err)
	assert.Equal(t, Manifest{filepath.Join(first, "z.las"), filepath.Join(second, "a.las")}, m)
}

func TestList_Empty(t *testing.T) {
	m, err := List(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestList_MissingDirectory(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	m := Manifest{"/data/a.las", "/data/b.laz"}

	require.NoError(t, Write(path, m))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/a.las\n/data/b.laz\n", string(data))

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestWrite_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Write(path, Manifest{"/a.las", "/b.las", "/c.las"}))
	require.NoError(t, Write(path, Manifest{"/d.las"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/d.las\n", string(data))
}

func TestWrite_EmptyManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Write(path, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "north", "n1.las"))
	touch(t, filepath.Join(root, "south", "deep", "s1.laz"))
	touch(t, filepath.Join(root, "top.las"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "01_tiled", "tile_0.las"))

	m, err := Discover(root, filepath.Join(root, "01_tiled"))
	require.NoError(t, err)

	assert.Equal(t, Manifest{
		filepath.Join(root, "north", "n1.las"),
		filepath.Join(root, "south", "deep", "s1.laz"),
		filepath.Join(root, "top.las"),
	}, m)
}

func TestDiscover_DuplicateBasename(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "strip.las"))
	touch(t, filepath.Join(root, "b", "STRIP.las"))

	_, err := Discover(root)
	require.Error(t, err)

	var dup *DuplicateInputError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, filepath.Join(root, "a", "strip.las"), dup.First)
	assert.Equal(t, filepath.Join(root, "b", "STRIP.las"), dup.Other)
}

func TestDiscover_Empty(t *testing.T) {
	m, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m)
}
