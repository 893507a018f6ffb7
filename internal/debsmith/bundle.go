package debsmith

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// The standalone installer shipped inside the source bundle. It deploys the
// application with nothing but coreutils and sudo, for machines without any
// Debian tooling.
const bundleInstallTemplate = `#!/bin/bash
# Standalone installer for {{.Name}} {{.Version}} (no package manager needed)
set -e

APP_DIR="{{.InstallRoot}}"

echo "Installing {{.Name}} to $APP_DIR"
sudo mkdir -p "$APP_DIR/data"
sudo cp -r ./* "$APP_DIR/"
sudo rm -f "$APP_DIR/install.sh"

sudo chmod -R a+rX "$APP_DIR"
sudo chmod 777 "$APP_DIR/data"

# System-wide launcher
sudo tee "{{.BinStub}}" >/dev/null <<LAUNCHER
#!/bin/bash
cd "$APP_DIR"
exec python3 "$APP_DIR/{{.Entrypoint}}" "\$@"
LAUNCHER
sudo chmod 755 "{{.BinStub}}"

echo "Done. Run: {{.Slug}}"
`

// ExportBundle copies the raw source inputs plus a self-contained install
// script into a second staging tree and freezes it into a compressed
// tarball. This path has no dpkg dependency: it must succeed on systems
// where the package assembler cannot run.
func ExportBundle(cfg BuildConfig) (string, error) {
	staging := filepath.Join(BuildDir, fmt.Sprintf("%s-%s", cfg.Slug, cfg.Version))
	if err := os.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("failed to clear bundle staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bundle staging: %w", err)
	}

	for _, name := range cfg.Sources {
		src := filepath.Join(cfg.SourceDir, name)
		dst := filepath.Join(staging, name)
		info, err := os.Stat(src)
		if err != nil {
			return "", fmt.Errorf("bundle input %s: %w", src, err)
		}
		if info.IsDir() {
			err = copyDir(src, dst)
		} else {
			err = copyFile(src, dst)
		}
		if err != nil {
			return "", fmt.Errorf("failed to copy %s into bundle: %w", name, err)
		}
	}

	installSh, err := renderScript("install.sh", bundleInstallTemplate, newScriptContext(cfg))
	if err != nil {
		return "", err
	}
	if err := writeExecutable(filepath.Join(staging, "install.sh"), installSh); err != nil {
		return "", fmt.Errorf("failed to write install.sh: %w", err)
	}

	if err := os.MkdirAll(DistDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", DistDir, err)
	}
	outPath := filepath.Join(DistDir, cfg.BundleName())
	if err := createTarball(staging, outPath, cfg.BundleCompression); err != nil {
		return "", err
	}
	return outPath, nil
}

// createTarball archives the contents of srcDir (contents, not the directory
// itself) into outPath with the selected compression. All entries are forced
// to numeric root ownership so bundles are portable.
func createTarball(srcDir, outPath, compression string) error {
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create tarball file: %w", err)
	}
	defer outFile.Close()

	var w io.WriteCloser
	switch compression {
	case "gz":
		w = pgzip.NewWriter(outFile)
	case "xz":
		w, err = xz.NewWriter(outFile)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	case "zst":
		w, err = zstd.NewWriter(outFile)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
	default:
		return fmt.Errorf("unsupported compression %q", compression)
	}

	tw := tar.NewWriter(w)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			if _, err := io.Copy(tw, f); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add files to tarball: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	return outFile.Close()
}
