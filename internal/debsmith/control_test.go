package debsmith

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileControlFieldOrder(t *testing.T) {
	cfg := testConfig(t)
	c := CompileControl(cfg, 123)

	keys := c.Keys()
	assert.Equal(t, "Package", keys[0])
	// The size reflects the finished tree, so it must come after everything.
	assert.Equal(t, "Installed-Size", keys[len(keys)-1])
	assert.Equal(t, "123", c.Get("Installed-Size"))
	assert.Equal(t, "demo", c.Get("Package"))
	assert.Equal(t, "python3 (>= 3.6), python3-tk", c.Get("Depends"))
}

func TestControlRenderFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Description = "First line\n\nMore detail"
	c := CompileControl(cfg, 7)
	rendered := c.Render()

	assert.Contains(t, rendered, "Package: demo\n")
	assert.Contains(t, rendered, "Description: First line\n .\n More detail\n")
	// Continuation lines are indented by exactly one space.
	for _, line := range strings.Split(rendered, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") {
			assert.False(t, strings.HasPrefix(line, "  "), "double-indented continuation: %q", line)
		}
	}
	assert.True(t, strings.HasSuffix(rendered, "Installed-Size: 7\n"))
}

func TestControlDeterminism(t *testing.T) {
	cfg := testConfig(t)

	render := func() string {
		setupDirs(t)
		tree := NewTree(cfg)
		require.NoError(t, tree.Build())
		require.NoError(t, GenerateScripts(tree, cfg))
		require.NoError(t, tree.StageDocs())
		c, err := WriteControl(tree, cfg)
		require.NoError(t, err)
		return c.Render()
	}

	first := render()
	second := render()
	assert.Equal(t, first, second, "control content must be byte-identical across runs")
}

func TestKiBRounding(t *testing.T) {
	assert.Equal(t, int64(0), KiB(0))
	assert.Equal(t, int64(1), KiB(1))
	assert.Equal(t, int64(1), KiB(1024))
	assert.Equal(t, int64(2), KiB(1025))
}

func TestWriteControlInstalledSize(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())
	require.NoError(t, GenerateScripts(tree, cfg))
	require.NoError(t, tree.StageDocs())

	// Independent sum of the fully staged tree, before control lands.
	independent, err := treeSize(tree.Root)
	require.NoError(t, err)

	c, err := WriteControl(tree, cfg)
	require.NoError(t, err)

	// md5sums is written by WriteControl before the size is taken.
	md5Info, err := os.Stat(filepath.Join(tree.ControlDir(), "md5sums"))
	require.NoError(t, err)
	want := KiB(independent + md5Info.Size())
	assert.Equal(t, want, mustParseInt(t, c.Get("Installed-Size")))
}

func TestWriteControlMD5SumsCoverPayload(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())
	require.NoError(t, GenerateScripts(tree, cfg))
	require.NoError(t, tree.StageDocs())
	_, err := WriteControl(tree, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tree.ControlDir(), "md5sums"))
	require.NoError(t, err)
	sums := string(data)

	assert.Contains(t, sums, "opt/demo/main.py")
	assert.Contains(t, sums, "opt/demo/run.sh")
	assert.Contains(t, sums, "usr/share/doc/demo/README")
	// Control area files are not payload.
	assert.NotContains(t, sums, "DEBIAN")
}

func mustParseInt(t *testing.T, s string) int64 {
	t.Helper()
	var n int64
	for _, r := range s {
		require.True(t, r >= '0' && r <= '9', "non-numeric size %q", s)
		n = n*10 + int64(r-'0')
	}
	return n
}
