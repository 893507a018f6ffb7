package debsmith

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"
)

// scriptContext is the typed template context for every generated text unit.
// Interpolation happens only through these fields, so config values never
// splice into shell syntax unescaped.
type scriptContext struct {
	Name        string
	Slug        string
	Version     string
	Description string
	InstallRoot string
	DataDir     string
	Launcher    string
	BinStub     string
	Entrypoint  string
}

func newScriptContext(cfg BuildConfig) scriptContext {
	entrypoint := "main.py"
	if len(cfg.Sources) > 0 {
		entrypoint = filepath.Base(cfg.Sources[0])
	}
	installRoot := "/opt/" + cfg.Slug
	return scriptContext{
		Name:        cfg.Name,
		Slug:        cfg.Slug,
		Version:     cfg.Version,
		Description: cfg.Description,
		InstallRoot: installRoot,
		DataDir:     installRoot + "/data",
		Launcher:    installRoot + "/run.sh",
		BinStub:     "/usr/bin/" + cfg.Slug,
		Entrypoint:  entrypoint,
	}
}

// The runtime launcher activates the bundled environment when present and
// otherwise falls back to the ambient interpreter. The fallback is
// unconditional: a missing or broken environment must never prevent launch.
const launcherTemplate = `#!/bin/bash
# Launcher for {{.Name}} {{.Version}}
APP_DIR="{{.InstallRoot}}"
cd "$APP_DIR" || exit 1

if [ -f "$APP_DIR/venv/bin/activate" ]; then
    if ! . "$APP_DIR/venv/bin/activate" 2>/dev/null; then
        echo "Warning: failed to activate bundled environment, using system python3"
    fi
else
    echo "Warning: bundled environment not found, using system python3"
fi

exec python3 "$APP_DIR/{{.Entrypoint}}" "$@"
`

// Thin indirection on the system PATH. Arguments and exit code pass through.
const binStubTemplate = `#!/bin/bash
exec "{{.Launcher}}" "$@"
`

// Upgrades stop the running instance before new files land. Best-effort:
// a missing process must not fail the install.
const preinstTemplate = `#!/bin/bash
# Pre-installation script for {{.Name}}
if [ "$1" = "upgrade" ]; then
    pkill -f "python3.*{{.InstallRoot}}/{{.Entrypoint}}" 2>/dev/null || true
fi
exit 0
`

// Every step is best-effort and only warns: the hosting package manager
// treats a non-zero hook exit as a failed install, and none of these steps
// are worth failing an install over. Re-running is harmless.
const postinstTemplate = `#!/bin/bash
# Post-installation script for {{.Name}}
chown -R root:root "{{.InstallRoot}}" 2>/dev/null || echo "Warning: could not set ownership on {{.InstallRoot}}"
chmod -R a+rX "{{.InstallRoot}}" 2>/dev/null || echo "Warning: could not set permissions on {{.InstallRoot}}"
chmod 755 "{{.Launcher}}" 2>/dev/null || echo "Warning: could not mark launcher executable"
chmod 755 "{{.BinStub}}" 2>/dev/null || echo "Warning: could not mark {{.BinStub}} executable"
# The application writes its database under data/, so it stays user-writable.
chmod 777 "{{.DataDir}}" 2>/dev/null || echo "Warning: could not open permissions on {{.DataDir}}"

if command -v update-desktop-database >/dev/null 2>&1; then
    update-desktop-database /usr/share/applications 2>/dev/null || echo "Warning: desktop database refresh failed"
else
    echo "Warning: update-desktop-database not found, skipping desktop refresh"
fi
exit 0
`

const prermTemplate = `#!/bin/bash
# Pre-removal script for {{.Name}}
pkill -f "python3.*{{.InstallRoot}}/{{.Entrypoint}}" 2>/dev/null || true
exit 0
`

// Plain removal keeps the install root so user data survives; only a purge
// deletes it.
const postrmTemplate = `#!/bin/bash
# Post-removal script for {{.Name}}
if [ "$1" = "purge" ]; then
    rm -rf "{{.InstallRoot}}" 2>/dev/null || echo "Warning: could not remove {{.InstallRoot}}"
    if command -v update-desktop-database >/dev/null 2>&1; then
        update-desktop-database /usr/share/applications 2>/dev/null || echo "Warning: desktop database refresh failed"
    fi
fi
exit 0
`

const desktopTemplate = `[Desktop Entry]
Version=1.0
Type=Application
Name={{.Name}}
Comment={{.Description}}
Exec={{.Launcher}}
Icon={{.Slug}}
Terminal=false
Categories=Utility;Application;
`

// Minimal 16x16 two-color XPM placeholder icon.
const iconXPM = `/* XPM */
static char *icon[] = {
"16 16 2 1",
". c #1976D2",
"# c #FFFFFF",
"................",
".##############.",
".#............#.",
".#.##########.#.",
".#.#........#.#.",
".#.#.######.#.#.",
".#.#.#....#.#.#.",
".#.#.#.##.#.#.#.",
".#.#.#.##.#.#.#.",
".#.#.#....#.#.#.",
".#.#.######.#.#.",
".#.#........#.#.",
".#.##########.#.",
".#............#.",
".##############.",
"................"};
`

func renderScript(name, tmpl string, ctx scriptContext) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("invalid %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// GenerateScripts renders the lifecycle hooks, the launchers and the desktop
// integration files into the staging tree.
func GenerateScripts(t *Tree, cfg BuildConfig) error {
	ctx := newScriptContext(cfg)

	executables := []struct {
		path string
		tmpl string
	}{
		{filepath.Join(t.InstallRoot(), "run.sh"), launcherTemplate},
		{filepath.Join(t.BinDir(), cfg.Slug), binStubTemplate},
		{filepath.Join(t.ControlDir(), "preinst"), preinstTemplate},
		{filepath.Join(t.ControlDir(), "postinst"), postinstTemplate},
		{filepath.Join(t.ControlDir(), "prerm"), prermTemplate},
		{filepath.Join(t.ControlDir(), "postrm"), postrmTemplate},
	}
	for _, e := range executables {
		content, err := renderScript(filepath.Base(e.path), e.tmpl, ctx)
		if err != nil {
			return err
		}
		if err := writeExecutable(e.path, content); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.path, err)
		}
	}

	desktop, err := renderScript("desktop", desktopTemplate, ctx)
	if err != nil {
		return err
	}
	desktopPath := filepath.Join(t.ApplicationsDir(), cfg.Slug+".desktop")
	if err := writeFile(desktopPath, desktop); err != nil {
		return fmt.Errorf("failed to write desktop entry: %w", err)
	}

	iconPath := filepath.Join(t.PixmapsDir(), cfg.Slug+".xpm")
	if err := writeFile(iconPath, iconXPM); err != nil {
		return fmt.Errorf("failed to write icon: %w", err)
	}
	return nil
}
