package debsmith

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// Severity of one pipeline step, declared per stage instead of implied by
// the call site. Fatal stops the run; Warn logs and continues.
type stepStatus int

const (
	stepOK stepStatus = iota
	stepWarn
	stepFatal
)

// StepResult is the aggregated outcome of one stage.
type StepResult struct {
	Name   string
	Status stepStatus
	Err    error
}

// Pipeline drives the build stages in fixed order against a single staging
// tree. One pipeline owns its tree exclusively; concurrent runs against the
// same working directory are the caller's problem.
type Pipeline struct {
	cfg      BuildConfig
	execCtx  *Executor
	tree     *Tree
	artifact string
	bundle   string
	results  []StepResult
	log      strings.Builder
}

func NewPipeline(cfg BuildConfig, execCtx *Executor) *Pipeline {
	return &Pipeline{cfg: cfg, execCtx: execCtx, tree: NewTree(cfg)}
}

type stage struct {
	name  string
	fatal bool
	run   func(p *Pipeline) error
}

var stages = []stage{
	{"staging tree", true, func(p *Pipeline) error {
		return p.tree.Build()
	}},
	{"hook scripts", true, func(p *Pipeline) error {
		return GenerateScripts(p.tree, p.cfg)
	}},
	{"documentation", false, func(p *Pipeline) error {
		return p.tree.StageDocs()
	}},
	{"control metadata", true, func(p *Pipeline) error {
		_, err := WriteControl(p.tree, p.cfg)
		return err
	}},
	{"package assembly", true, func(p *Pipeline) error {
		artifact, err := AssemblePackage(p.tree, p.cfg, p.execCtx)
		if err != nil {
			return err
		}
		p.artifact = artifact
		return nil
	}},
	{"source bundle", false, func(p *Pipeline) error {
		bundle, err := ExportBundle(p.cfg)
		if err != nil {
			return err
		}
		p.bundle = bundle
		return nil
	}},
	{"checksums", false, func(p *Pipeline) error {
		var files []string
		if p.artifact != "" {
			files = append(files, p.artifact)
		}
		if p.bundle != "" {
			files = append(files, p.bundle)
		}
		if len(files) == 0 {
			return fmt.Errorf("nothing to checksum")
		}
		_, err := WriteChecksums(p.cfg, files)
		return err
	}},
}

// Run executes all stages in order. Warn-policy stages log and continue;
// fatal-policy stages abort. The run fails if the canonical artifact is
// absent at the end, whatever the stages reported.
func (p *Pipeline) Run() error {
	start := time.Now()
	statusf(colInfo, "Building %s %s (%s)", p.cfg.Name, p.cfg.Version, p.cfg.Arch)
	p.logf("build started: %s %s %s", p.cfg.Slug, p.cfg.Version, p.cfg.Arch)

	for _, s := range stages {
		statusf(colInfo, "Stage: %s", s.name)
		err := s.run(p)
		switch {
		case err == nil:
			p.results = append(p.results, StepResult{Name: s.name, Status: stepOK})
			p.logf("stage %s: ok", s.name)
		case s.fatal:
			p.results = append(p.results, StepResult{Name: s.name, Status: stepFatal, Err: err})
			p.logf("stage %s: fatal: %v", s.name, err)
			p.flushLog()
			cPrintf(colError, "Error: %s failed: %v\n", s.name, err)
			return fmt.Errorf("%s failed: %w", s.name, err)
		default:
			p.results = append(p.results, StepResult{Name: s.name, Status: stepWarn, Err: err})
			p.logf("stage %s: warning: %v", s.name, err)
			cPrintf(colWarn, "Warning: %s failed: %v\n", s.name, err)
		}
	}

	p.logf("build finished in %s", time.Since(start).Round(time.Millisecond))
	p.flushLog()

	if p.artifact == "" || !fileExists(p.artifact) {
		cPrintf(colError, "Error: no artifact was produced\n")
		return fmt.Errorf("artifact %s is absent after all stages", filepath.Join(DistDir, p.cfg.ArtifactName()))
	}

	colArrow.Print("-> ")
	colSuccess.Println("Build completed successfully")
	fmt.Printf("   %s\n", p.artifact)
	if p.bundle != "" {
		fmt.Printf("   %s\n", p.bundle)
	}
	return nil
}

// Artifact returns the canonical path of the built package, or "".
func (p *Pipeline) Artifact() string { return p.artifact }

// Bundle returns the path of the exported source bundle, or "".
func (p *Pipeline) Bundle() string { return p.bundle }

// Results returns the per-stage outcomes of the last run.
func (p *Pipeline) Results() []StepResult { return p.results }

func (p *Pipeline) logf(format string, a ...any) {
	fmt.Fprintf(&p.log, "[%s] %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, a...))
}

// flushLog compresses the run log into the dist directory. Best-effort: a
// missing log never fails a build.
func (p *Pipeline) flushLog() {
	if err := os.MkdirAll(DistDir, 0o755); err != nil {
		debugf("failed to create %s for build log: %v\n", DistDir, err)
		return
	}
	out, err := os.Create(filepath.Join(DistDir, "build.log.xz"))
	if err != nil {
		debugf("failed to create build log: %v\n", err)
		return
	}
	defer out.Close()

	xzWriter, err := xz.NewWriter(out)
	if err != nil {
		debugf("failed to create xz writer: %v\n", err)
		return
	}
	if _, err := io.WriteString(xzWriter, p.log.String()); err != nil {
		debugf("failed to write build log: %v\n", err)
	}
	xzWriter.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
