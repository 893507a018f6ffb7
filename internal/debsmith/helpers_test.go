package debsmith

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupDirs points the build/dist globals at a fresh temp directory for the
// duration of one test.
func setupDirs(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	oldBuild, oldDist := BuildDir, DistDir
	BuildDir = filepath.Join(dir, "build")
	DistDir = filepath.Join(dir, "dist")
	t.Cleanup(func() {
		BuildDir, DistDir = oldBuild, oldDist
	})
}

// writeSources creates a temp source directory with the given files.
func writeSources(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		err := os.WriteFile(filepath.Join(dir, n), []byte("print('"+n+"')\n"), 0o644)
		require.NoError(t, err)
	}
	return dir
}

// testConfig returns a BuildConfig against a temp source directory.
func testConfig(t *testing.T) BuildConfig {
	t.Helper()
	srcDir := writeSources(t, "main.py", "update_utils.py")
	return BuildConfig{
		Name:              "demo",
		Slug:              "demo",
		Version:           "2.1.0",
		Description:       "Demo application",
		Maintainer:        "Test Developer <test@example.com>",
		Arch:              "amd64",
		Section:           "utils",
		MinRuntime:        "3.6",
		Depends:           []string{"python3 (>= 3.6)", "python3-tk"},
		SourceDir:         srcDir,
		Sources:           []string{"main.py", "update_utils.py"},
		BundleCompression: "gz",
	}
}

// testExec is a plain unprivileged executor for test runs.
func testExec() *Executor {
	return &Executor{Context: context.Background()}
}

// stubTool writes an executable shell script named name into dir.
func stubTool(t *testing.T, dir, name, body string) {
	t.Helper()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
}
