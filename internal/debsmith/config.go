package debsmith

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load debsmith.conf and apply defaults. The file is looked up in the
// working directory first, then under /etc.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	file, err := os.Open(path)
	if err != nil && !strings.HasPrefix(path, "/") {
		file, err = os.Open("/etc/" + path)
	}
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge DEBSMITH_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge DEBSMITH_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "DEBSMITH_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimPrefix(parts[0], "DEBSMITH_")
				cfg.Values[key] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	BuildDir = cfg.Values["BUILD_DIR"]
	if BuildDir == "" {
		BuildDir = "build"
	}
	DistDir = cfg.Values["DIST_DIR"]
	if DistDir == "" {
		DistDir = "dist"
	}

	Debug = cfg.Values["DEBUG"] == "1"
}

// BuildConfig is the immutable input of one pipeline run. It is assembled
// once from the config file and passed by value into every stage.
type BuildConfig struct {
	Name        string
	Slug        string
	Version     string
	Description string
	Maintainer  string
	Arch        string
	Section     string
	MinRuntime  string
	Depends     []string
	SourceDir   string
	Sources     []string
	// BundleCompression selects the source bundle format: gz (default),
	// xz or zst.
	BundleCompression string
}

// NewBuildConfig fills in a BuildConfig from loaded configuration values,
// defaulting every field to the packaged demo application.
func NewBuildConfig(cfg *Config) (BuildConfig, error) {
	get := func(key, def string) string {
		if v := cfg.Values[key]; v != "" {
			return v
		}
		return def
	}

	bc := BuildConfig{
		Name:        get("APP_NAME", "SimpleTestApp"),
		Version:     get("VERSION", "1.0.1"),
		Description: get("DESCRIPTION", "Simple test application with user registration and update support"),
		Maintainer:  get("MAINTAINER", "Test Developer <test@example.com>"),
		Arch:        get("ARCH", "amd64"),
		Section:     get("SECTION", "utils"),
		MinRuntime:  get("MIN_PYTHON", "3.6"),
		SourceDir:   get("SOURCE_DIR", "."),

		BundleCompression: get("BUNDLE_COMPRESSION", "gz"),
	}

	bc.Slug = cfg.Values["APP_SLUG"]
	if bc.Slug == "" {
		bc.Slug = Slugify(bc.Name)
	}

	deps := get("DEPENDS", "")
	if deps == "" {
		bc.Depends = []string{
			fmt.Sprintf("python3 (>= %s)", bc.MinRuntime),
			"python3-tk",
		}
	} else {
		for _, d := range strings.Split(deps, ",") {
			if d = strings.TrimSpace(d); d != "" {
				bc.Depends = append(bc.Depends, d)
			}
		}
	}

	srcs := get("SOURCES", "main.py update_utils.py")
	bc.Sources = strings.Fields(srcs)

	switch bc.BundleCompression {
	case "gz", "xz", "zst":
	default:
		return bc, fmt.Errorf("unsupported bundle compression %q (want gz, xz or zst)", bc.BundleCompression)
	}

	if strings.ContainsAny(bc.Version, " /_") {
		return bc, fmt.Errorf("invalid version string %q", bc.Version)
	}

	return bc, nil
}

// Slugify lowercases a display name into the on-disk package identity
// (SimpleTestApp -> simple-test-app).
func Slugify(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				prev := rune(name[i-1])
				if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
					b.WriteByte('-')
				}
			}
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '_':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ArtifactName is the canonical artifact file name for a configuration.
func (bc BuildConfig) ArtifactName() string {
	return fmt.Sprintf("%s_%s_%s.deb", bc.Slug, bc.Version, bc.Arch)
}

// BundleName is the source bundle file name for a configuration.
func (bc BuildConfig) BundleName() string {
	return fmt.Sprintf("%s-%s.tar.%s", bc.Slug, bc.Version, bc.BundleCompression)
}
