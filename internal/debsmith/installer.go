package debsmith

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
)

// InstallAttempt records one installation strategy and its outcome. The
// record only lives for the duration of the orchestrator run.
type InstallAttempt struct {
	Strategy string
	Skipped  bool
	Err      error
}

// installStrategy is one entry of the ordered fallback chain. available
// probes the environment; run performs the installation.
type installStrategy struct {
	name      string
	available func() bool
	run       func(debPath string, execCtx *Executor) error
}

func hasTool(names ...string) bool {
	for _, n := range names {
		if _, err := exec.LookPath(n); err == nil {
			return true
		}
	}
	return false
}

// Strict sequential fallback: the front-end manager resolves dependencies,
// the low-level tool installs without them, and the repair mode completes
// whatever the low-level install left broken.
var strategies = []installStrategy{
	{
		name:      "apt install",
		available: func() bool { return hasTool("apt", "apt-get") },
		run: func(debPath string, execCtx *Executor) error {
			tool := "apt"
			if _, err := exec.LookPath(tool); err != nil {
				tool = "apt-get"
			}
			// apt needs the ./ prefix to treat the argument as a local file.
			local := debPath
			if !filepath.IsAbs(local) {
				local = "./" + filepath.Clean(local)
			}
			return execCtx.Run(exec.Command(tool, "install", "-y", local))
		},
	},
	{
		name:      "dpkg -i",
		available: func() bool { return hasTool("dpkg") },
		run: func(debPath string, execCtx *Executor) error {
			return execCtx.Run(exec.Command("dpkg", "-i", debPath))
		},
	},
	{
		name:      "apt-get -f install",
		available: func() bool { return hasTool("apt-get", "apt") },
		run: func(debPath string, execCtx *Executor) error {
			tool := "apt-get"
			if _, err := exec.LookPath(tool); err != nil {
				tool = "apt"
			}
			return execCtx.Run(exec.Command(tool, "install", "-f", "-y"))
		},
	},
}

// LocateArtifact finds the built package in the given directories, first
// match wins. Zero matches is fatal: there is nothing to install.
func LocateArtifact(dirs ...string) (string, error) {
	if len(dirs) == 0 {
		dirs = []string{".", DistDir}
	}
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*_*_*.deb"))
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		if len(matches) > 1 {
			cPrintf(colWarn, "Multiple package files in %s, using %s\n", dir, matches[0])
		}
		return matches[0], nil
	}
	return "", fmt.Errorf("no package file found (expected <name>_<version>_<arch>.deb)")
}

// InstallArtifact walks the strategy chain until one succeeds or the chain
// is exhausted. Individual strategy failures are warnings; the only fatal
// condition is having no viable installation mechanism at all. An exhausted
// chain still returns nil: the repair pass may have left a usable install
// even when it reported an error.
func InstallArtifact(debPath string, execCtx *Executor) ([]InstallAttempt, error) {
	if !hasTool("apt", "apt-get") && !hasTool("dpkg") {
		return nil, fmt.Errorf("no installation mechanism available: neither apt nor dpkg is present")
	}

	var attempts []InstallAttempt
	for _, s := range strategies {
		if !s.available() {
			debugf("Strategy %q unavailable, skipping\n", s.name)
			attempts = append(attempts, InstallAttempt{Strategy: s.name, Skipped: true})
			continue
		}

		statusf(colInfo, "Trying %s", s.name)
		err := s.run(debPath, execCtx)
		attempts = append(attempts, InstallAttempt{Strategy: s.name, Err: err})
		if err == nil {
			colArrow.Print("-> ")
			colSuccess.Printf("Installed %s via %s\n", filepath.Base(debPath), s.name)
			return attempts, nil
		}
		cPrintf(colWarn, "Warning: %s failed: %v\n", s.name, err)
	}

	cPrintf(colWarn, "Warning: all strategies reported errors; the package may not be fully installed\n")
	return attempts, nil
}
