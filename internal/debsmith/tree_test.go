package debsmith

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeLayout(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())

	assert.Equal(t, filepath.Join(BuildDir, "demo_2.1.0_amd64"), tree.Root)
	for _, dir := range []string{
		tree.ControlDir(),
		tree.InstallRoot(),
		tree.DataDir(),
		tree.BinDir(),
		tree.ApplicationsDir(),
		tree.PixmapsDir(),
		tree.DocDir(),
		DistDir,
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestTreeStagesSourcesByteForByte(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())

	for _, name := range cfg.Sources {
		want, err := os.ReadFile(filepath.Join(cfg.SourceDir, name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(tree.InstallRoot(), name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestTreeBuildIsCleanRoom(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)
	cfg.Version = "1.0.0"

	old := NewTree(cfg)
	require.NoError(t, old.Build())
	stale := filepath.Join(old.InstallRoot(), "leftover.pyc")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	cfg.Version = "2.0.0"
	fresh := NewTree(cfg)
	require.NoError(t, fresh.Build())

	// The previous version's tree and its stray file must be gone entirely.
	_, err := os.Stat(old.Root)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(fresh.InstallRoot(), "leftover.pyc"))
	assert.True(t, os.IsNotExist(err))
}

func TestTreeBuildFailsOnMissingSource(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)
	cfg.Sources = append(cfg.Sources, "does_not_exist.py")

	tree := NewTree(cfg)
	err := tree.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist.py")
}

func TestTreeStagesSourceDirectories(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	sub := filepath.Join(cfg.SourceDir, "assets")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "logo.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))
	cfg.Sources = append(cfg.Sources, "assets")

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())

	got, err := os.ReadFile(filepath.Join(tree.InstallRoot(), "assets", "logo.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got)
}

func TestTreeStagesSymlinksAsSymlinks(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	sub := filepath.Join(cfg.SourceDir, "pkgdir")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "real.txt"), []byte("payload"), 0o644))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(sub, "alias")))
	cfg.Sources = append(cfg.Sources, "pkgdir")

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())

	staged := filepath.Join(tree.InstallRoot(), "pkgdir", "alias")
	info, err := os.Lstat(staged)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "alias must stay a symlink")

	target, err := os.Readlink(staged)
	require.NoError(t, err)
	assert.Equal(t, "real.txt", target)
}

func TestStageDocs(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())
	require.NoError(t, tree.StageDocs())

	readme, err := os.ReadFile(filepath.Join(tree.DocDir(), "README"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "demo 2.1.0")

	info, err := os.Stat(filepath.Join(tree.DocDir(), "changelog.gz"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestTreeSizeCountsRegularFiles(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())

	var want int64
	for _, name := range cfg.Sources {
		info, err := os.Stat(filepath.Join(cfg.SourceDir, name))
		require.NoError(t, err)
		want += info.Size()
	}
	size, err := tree.Size()
	require.NoError(t, err)
	assert.Equal(t, want, size)
}
