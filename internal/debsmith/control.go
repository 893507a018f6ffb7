package debsmith

import (
	"crypto/md5"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// controlField is one Key: Value pair of the control descriptor. Order is
// significant: the descriptor is rendered exactly in append order.
type controlField struct {
	Key   string
	Value string
}

// Control is the package metadata record consumed by dpkg-deb.
type Control struct {
	fields []controlField
}

func (c *Control) append(key, value string) {
	c.fields = append(c.fields, controlField{Key: key, Value: value})
}

// Get returns the value of a field, or "" when absent.
func (c *Control) Get(key string) string {
	for _, f := range c.fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Keys returns the field names in render order.
func (c *Control) Keys() []string {
	keys := make([]string, len(c.fields))
	for i, f := range c.fields {
		keys[i] = f.Key
	}
	return keys
}

// CompileControl populates the descriptor from the build configuration.
// installedKiB must be derived from the fully staged tree; it is appended
// last so the descriptor always reflects the final content.
func CompileControl(cfg BuildConfig, installedKiB int64) *Control {
	c := &Control{}
	c.append("Package", cfg.Slug)
	c.append("Version", cfg.Version)
	c.append("Section", cfg.Section)
	c.append("Priority", "optional")
	c.append("Architecture", cfg.Arch)
	c.append("Depends", strings.Join(cfg.Depends, ", "))
	c.append("Maintainer", cfg.Maintainer)
	c.append("Description", formatDescription(cfg))
	c.append("Installed-Size", fmt.Sprintf("%d", installedKiB))
	return c
}

// formatDescription renders the synopsis plus indented continuation lines
// per the control file convention. Empty continuation lines become " .".
func formatDescription(cfg BuildConfig) string {
	lines := strings.Split(strings.TrimSpace(cfg.Description), "\n")
	var b strings.Builder
	b.WriteString(lines[0])
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			line = "."
		}
		b.WriteString("\n " + line)
	}
	b.WriteString(fmt.Sprintf("\n Requires Python %s or newer.", cfg.MinRuntime))
	return b.String()
}

// Render serializes the descriptor as newline-delimited Key: Value pairs.
func (c *Control) Render() string {
	var b strings.Builder
	for _, f := range c.fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
	}
	return b.String()
}

// KiB converts a byte count to the kilobyte unit dpkg expects, rounding up.
func KiB(bytes int64) int64 {
	return (bytes + 1023) / 1024
}

// WriteControl finalizes the tree metadata: the md5sums index of the staged
// payload first, then the control descriptor with Installed-Size computed
// from the finished tree. Must run after every other stage that touches the
// tree, or the reported size under-counts.
func WriteControl(t *Tree, cfg BuildConfig) (*Control, error) {
	if err := writeMD5Sums(t); err != nil {
		return nil, err
	}

	size, err := t.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to size tree: %w", err)
	}

	c := CompileControl(cfg, KiB(size))
	path := filepath.Join(t.ControlDir(), "control")
	if err := os.WriteFile(path, []byte(c.Render()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write control descriptor: %w", err)
	}
	return c, nil
}

// writeMD5Sums indexes every payload file (everything outside DEBIAN/) in
// the dpkg md5sums format: "<hash>  <relative path>".
func writeMD5Sums(t *Tree) error {
	var lines []string
	err := filepath.WalkDir(t.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == t.ControlDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(t.Root, path)
		if err != nil {
			return err
		}
		sum, err := md5File(path)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s  %s", sum, rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index payload files: %w", err)
	}

	sort.Strings(lines)
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(filepath.Join(t.ControlDir(), "md5sums"), []byte(content), 0o644)
}

// md5File returns the hex MD5 of a file. The md5sums index is a dpkg format
// requirement; integrity checksums for release artifacts use BLAKE3 instead.
func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
