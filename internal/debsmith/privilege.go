package debsmith

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// needsRootPrivileges checks if the requested command requires root
func needsRootPrivileges(args []string) bool {
	if len(args) < 1 {
		return false
	}

	// Only installation touches the live system; builds stay in the
	// working directory.
	rootCommands := map[string]bool{
		"install": true,
		"i":       true,
	}
	return rootCommands[args[0]]
}

// authenticateOnce performs a single authentication check at program start
func authenticateOnce() error {
	if os.Geteuid() == 0 {
		return nil // Already root
	}

	cmd := exec.Command("sudo", "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo authentication failed: %w", err)
	}

	// Start keep-alive goroutine for sudo
	go func() {
		ticker := time.NewTicker(4 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			exec.Command("sudo", "-nv").Run()
		}
	}()

	colArrow.Print("-> ")
	colSuccess.Println("Authenticated via sudo")
	return nil
}
