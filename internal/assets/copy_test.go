package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	s := newSite(t)
	s.write(t, "assets/images/logo.png", "png")
	s.write(t, "assets/images/video/intro.mp4", "mp4")

	src := filepath.Join(s.src, "assets", "images")
	dst := filepath.Join(s.dist, "assets", "images")

	n, err := CopyTree(src, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dst, "video", "intro.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))
}

func TestCopyTreeMissingSource(t *testing.T) {
	n, err := CopyTree(filepath.Join(t.TempDir(), "none"), t.TempDir(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.js")
	dst := filepath.Join(dir, "out", "a.js")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("old content"), 0o644))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
