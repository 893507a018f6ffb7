package debsmith

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
)

// Tree is the staging directory mirroring the target filesystem layout.
// It is owned by exactly one pipeline run and is always rebuilt from empty.
type Tree struct {
	Root string
	cfg  BuildConfig
}

// NewTree returns the staging tree for a configuration. Nothing is created
// on disk until Build is called.
func NewTree(cfg BuildConfig) *Tree {
	root := filepath.Join(BuildDir, fmt.Sprintf("%s_%s_%s", cfg.Slug, cfg.Version, cfg.Arch))
	return &Tree{Root: root, cfg: cfg}
}

// Fixed relative layout of the installed filesystem.
func (t *Tree) ControlDir() string { return filepath.Join(t.Root, "DEBIAN") }
func (t *Tree) InstallRoot() string {
	return filepath.Join(t.Root, "opt", t.cfg.Slug)
}
func (t *Tree) DataDir() string { return filepath.Join(t.InstallRoot(), "data") }
func (t *Tree) BinDir() string  { return filepath.Join(t.Root, "usr", "bin") }
func (t *Tree) ApplicationsDir() string {
	return filepath.Join(t.Root, "usr", "share", "applications")
}
func (t *Tree) PixmapsDir() string {
	return filepath.Join(t.Root, "usr", "share", "pixmaps")
}
func (t *Tree) DocDir() string {
	return filepath.Join(t.Root, "usr", "share", "doc", t.cfg.Slug)
}

// Build destroys any previous build and dist state, then creates the fixed
// directory hierarchy and stages the application sources byte-for-byte.
// Any failure here is fatal: a partial tree must never reach the assembler.
func (t *Tree) Build() error {
	// Clean-room policy: stale files from a previous version must not leak
	// into a new package.
	for _, dir := range []string{BuildDir, DistDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove previous %s: %w", dir, err)
		}
	}

	dirs := []string{
		t.ControlDir(),
		t.InstallRoot(),
		t.DataDir(),
		t.BinDir(),
		t.ApplicationsDir(),
		t.PixmapsDir(),
		t.DocDir(),
		DistDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return t.stageSources()
}

// stageSources copies the opaque application inputs into the install root.
func (t *Tree) stageSources() error {
	bar := progressbar.Default(int64(len(t.cfg.Sources)), "staging sources")
	for _, name := range t.cfg.Sources {
		src := filepath.Join(t.cfg.SourceDir, name)
		dst := filepath.Join(t.InstallRoot(), name)

		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("source input %s: %w", src, err)
		}
		if info.IsDir() {
			err = copyDir(src, dst)
		} else {
			err = copyFile(src, dst)
		}
		if err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
		bar.Add(1)
	}
	return bar.Finish()
}

// StageDocs writes the package documentation: a README and the gzip
// compressed Debian changelog.
func (t *Tree) StageDocs() error {
	readme := fmt.Sprintf("%s %s\n\n%s\n\nInstalled under /opt/%s. Run %s from a terminal or the applications menu.\n",
		t.cfg.Name, t.cfg.Version, t.cfg.Description, t.cfg.Slug, t.cfg.Slug)
	if err := os.WriteFile(filepath.Join(t.DocDir(), "README"), []byte(readme), 0o644); err != nil {
		return fmt.Errorf("failed to write README: %w", err)
	}

	changelog := fmt.Sprintf("%s (%s) unstable; urgency=low\n\n  * Packaged release.\n\n -- %s\n",
		t.cfg.Slug, t.cfg.Version, t.cfg.Maintainer)

	out, err := os.Create(filepath.Join(t.DocDir(), "changelog.gz"))
	if err != nil {
		return fmt.Errorf("failed to create changelog.gz: %w", err)
	}
	defer out.Close()

	gz := pgzip.NewWriter(out)
	if _, err := gz.Write([]byte(changelog)); err != nil {
		gz.Close()
		return fmt.Errorf("failed to compress changelog: %w", err)
	}
	return gz.Close()
}

// Size returns the recursive byte size of the staged tree. It must be read
// only after every file has been staged, since the control descriptor's
// Installed-Size is a function of the final tree.
func (t *Tree) Size() (int64, error) {
	return treeSize(t.Root)
}
