package debsmith

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// stubDpkgDeb fakes the assembler: it writes <tree>.deb next to the tree
// root exactly like the real tool.
func stubDpkgDeb(t *testing.T, bin string) {
	t.Helper()
	stubTool(t, bin, "dpkg-deb", `for last; do :; done
echo "fake deb" > "${last}.deb"`)
}

func TestPipelineEndToEnd(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	bin := t.TempDir()
	stubDpkgDeb(t, bin)
	t.Setenv("PATH", bin)

	p := NewPipeline(cfg, testExec())
	require.NoError(t, p.Run())

	assert.Equal(t, filepath.Join(DistDir, "demo_2.1.0_amd64.deb"), p.Artifact())
	assert.Equal(t, filepath.Join(DistDir, "demo-2.1.0.tar.gz"), p.Bundle())

	for _, name := range []string{
		"demo_2.1.0_amd64.deb",
		"demo-2.1.0.tar.gz",
		"demo_2.1.0.b3sums",
		"build.log.xz",
	} {
		_, err := os.Stat(filepath.Join(DistDir, name))
		assert.NoError(t, err, name)
	}

	// The intermediate .deb must not survive under its staging name.
	_, err := os.Stat(p.tree.Root + ".deb")
	assert.True(t, os.IsNotExist(err))

	results := p.Results()
	require.Len(t, results, 7)
	for _, r := range results {
		assert.Equal(t, stepOK, r.Status, r.Name)
		assert.NoError(t, r.Err, r.Name)
	}
}

func TestPipelineFatalStageAborts(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)
	cfg.Sources = []string{"missing.py"}

	bin := t.TempDir()
	stubDpkgDeb(t, bin)
	t.Setenv("PATH", bin)

	p := NewPipeline(cfg, testExec())
	err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging tree failed")

	results := p.Results()
	require.Len(t, results, 1, "a fatal stage stops the run")
	assert.Equal(t, stepFatal, results[0].Status)
	assert.Empty(t, p.Artifact())
}

func TestPipelineWarnStageContinues(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)
	// An unsupported compression makes the bundle exporter fail while the
	// package path stays intact.
	cfg.BundleCompression = "bz2"

	bin := t.TempDir()
	stubDpkgDeb(t, bin)
	t.Setenv("PATH", bin)

	p := NewPipeline(cfg, testExec())
	require.NoError(t, p.Run(), "a warn-policy failure must not abort the run")

	assert.NotEmpty(t, p.Artifact())
	assert.Empty(t, p.Bundle())

	var bundleResult *StepResult
	for i := range p.Results() {
		if p.Results()[i].Name == "source bundle" {
			bundleResult = &p.Results()[i]
		}
	}
	require.NotNil(t, bundleResult)
	assert.Equal(t, stepWarn, bundleResult.Status)
}

func TestPipelineFailsWithoutAssembler(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)
	t.Setenv("PATH", t.TempDir())

	p := NewPipeline(cfg, testExec())
	err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dpkg-deb not found")
}

func TestPipelineMissingArtifactIsFatal(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	// An assembler that exits 0 without producing output.
	bin := t.TempDir()
	stubTool(t, bin, "dpkg-deb", "exit 0")
	t.Setenv("PATH", bin)

	p := NewPipeline(cfg, testExec())
	err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestPipelineBuildLogContent(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	bin := t.TempDir()
	stubDpkgDeb(t, bin)
	t.Setenv("PATH", bin)

	p := NewPipeline(cfg, testExec())
	require.NoError(t, p.Run())

	f, err := os.Open(filepath.Join(DistDir, "build.log.xz"))
	require.NoError(t, err)
	defer f.Close()
	r, err := xz.NewReader(f)
	require.NoError(t, err)

	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, readErr := r.Read(buf)
		sb.Write(buf[:n])
		if readErr != nil {
			break
		}
	}
	log := sb.String()
	assert.Contains(t, log, "build started: demo 2.1.0 amd64")
	assert.Contains(t, log, "stage package assembly: ok")
	assert.Contains(t, log, "build finished")
}

func TestWriteChecksums(t *testing.T) {
	setupDirs(t)
	require.NoError(t, os.MkdirAll(DistDir, 0o755))
	cfg := testConfig(t)

	artifact := filepath.Join(DistDir, "demo_2.1.0_amd64.deb")
	require.NoError(t, os.WriteFile(artifact, []byte("payload"), 0o644))

	out, err := WriteChecksums(cfg, []string{artifact})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(DistDir, "demo_2.1.0.b3sums"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	parts := strings.Split(line, "  ")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 64, "BLAKE3-256 hex digest")
	assert.Equal(t, "demo_2.1.0_amd64.deb", parts[1])

	// The digest is stable for identical content.
	again, err := hashFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, parts[0], again)
}

func TestAssemblePackageRenamesToCanonicalName(t *testing.T) {
	setupDirs(t)
	cfg := testConfig(t)

	bin := t.TempDir()
	stubDpkgDeb(t, bin)
	t.Setenv("PATH", bin)

	tree := NewTree(cfg)
	require.NoError(t, tree.Build())

	got, err := AssemblePackage(tree, cfg, testExec())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(DistDir, "demo_2.1.0_amd64.deb"), got)
	_, statErr := os.Stat(got)
	assert.NoError(t, statErr)
}
