package debsmith

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// AssemblePackage freezes the staged tree into a single artifact by invoking
// dpkg-deb exactly once, then renames the output to its canonical
// <name>_<version>_<arch> form under the dist directory.
//
// Every failure here is fatal: the pipeline must never report success while
// the artifact is missing or sitting under a non-canonical name.
func AssemblePackage(t *Tree, cfg BuildConfig, execCtx *Executor) (string, error) {
	if _, err := exec.LookPath("dpkg-deb"); err != nil {
		return "", fmt.Errorf("dpkg-deb not found: install the dpkg tooling to build packages")
	}

	// dpkg-deb writes <tree>.deb next to the tree root.
	cmd := exec.Command("dpkg-deb", "--build", "--root-owner-group", t.Root)
	if err := execCtx.Run(cmd); err != nil {
		return "", fmt.Errorf("dpkg-deb failed: %w", err)
	}

	produced := t.Root + ".deb"
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("dpkg-deb reported success but %s is missing: %w", produced, err)
	}

	canonical := filepath.Join(DistDir, cfg.ArtifactName())
	if err := os.Rename(produced, canonical); err != nil {
		return "", fmt.Errorf("failed to rename artifact to %s: %w", canonical, err)
	}

	return canonical, nil
}
