package debsmith

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// We use a value of 1 for critical and 0 for non-critical/default.
var isCriticalAtomic atomic.Int32

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: debsmith <command>")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "Version information"},
		{"build, b", "Build the package artifact and source bundle"},
		{"install, i", "Install a built artifact on this machine"},
		{"publish, p", "Upload release files to the configured bucket"},
		{"clean", "Remove build and dist directories"},
	}

	maxLen := 0
	for _, c := range cmds {
		if len(c.Cmd) > maxLen {
			maxLen = len(c.Cmd)
		}
	}
	for _, c := range cmds {
		fmt.Printf("  %s%s", c.Cmd, strings.Repeat(" ", maxLen-len(c.Cmd)+2))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for cmd/debsmith.
func Main() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// Graceful cancellation on the first signal; a second one forces exit.
	// The install phase is marked critical and blocks the first signal so a
	// half-written dpkg database doesn't get left behind.
	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					colArrow.Print("\n-> ")
					colError.Printf("Critical operation in progress (install). Press Ctrl+C AGAIN to force exit NOW.\n")
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						colError.Printf("Forced immediate exit.")
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					colArrow.Print("\n-> ")
					color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
					cancel()
					time.Sleep(100 * time.Millisecond)
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(2 * time.Second):
						os.Exit(0)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if ctx.Err() != nil {
		return 0
	}

	if len(os.Args) < 2 {
		printHelp()
		return 0
	}

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read configuration: %v\n", err)
	}
	initConfig(cfg)

	bc, err := NewBuildConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	if needsRootPrivileges(os.Args[1:]) {
		if err := authenticateOnce(); err != nil {
			fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
			return 1
		}
	}

	UserExec = &Executor{Context: ctx, ShouldRunAsRoot: false}
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	switch os.Args[1] {
	case "version", "--version":
		fmt.Printf("debsmith %s (built %s)\n", version, buildDate)

	case "build", "b":
		p := NewPipeline(bc, UserExec)
		if err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
			return 1
		}

	case "install", "i":
		debPath, err := LocateArtifact()
		if err != nil {
			cPrintf(colError, "Error: %v\n", err)
			return 1
		}

		isCriticalAtomic.Store(1)
		defer isCriticalAtomic.Store(0)

		if _, err := InstallArtifact(debPath, RootExec); err != nil {
			cPrintf(colError, "Error: %v\n", err)
			return 1
		}
		colArrow.Print("-> ")
		colSuccess.Println("Installation completed!")

	case "publish", "p":
		if err := HandlePublishCommand(cfg, bc); err != nil {
			fmt.Fprintf(os.Stderr, "Publish failed: %v\n", err)
			return 1
		}

	case "clean":
		for _, dir := range []string{BuildDir, DistDir} {
			if err := os.RemoveAll(dir); err != nil {
				fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
				return 1
			}
		}
		colArrow.Print("-> ")
		colSuccess.Println("Removed build and dist directories")

	default:
		fmt.Println("Unknown command:", os.Args[1])
		printHelp()
		return 1
	}

	return 0
}
