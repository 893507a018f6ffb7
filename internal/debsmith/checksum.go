package debsmith

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
	"lukechampine.com/blake3"
)

// hashFile computes the BLAKE3 checksum of a file. It prefers the system
// b3sum when present and falls back to the internal implementation.
func hashFile(path string) (string, error) {
	if _, err := exec.LookPath("b3sum"); err == nil {
		cmd := exec.Command("b3sum", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0], nil
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Shared lock while hashing so a concurrent writer can't produce a
	// torn checksum.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err == nil {
		defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// WriteChecksums records the BLAKE3 sums of the release files into
// dist/<slug>_<version>.b3sums, one "<hash>  <filename>" line per artifact.
func WriteChecksums(cfg BuildConfig, paths []string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		sum, err := hashFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s: %w", p, err)
		}
		fmt.Fprintf(&b, "%s  %s\n", sum, filepath.Base(p))
	}

	out := filepath.Join(DistDir, fmt.Sprintf("%s_%s.b3sums", cfg.Slug, cfg.Version))
	if err := os.WriteFile(out, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum index: %w", err)
	}
	return out, nil
}
