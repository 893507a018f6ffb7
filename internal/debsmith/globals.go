package debsmith

import (
	"os"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// Global variables
var (
	BuildDir   string
	DistDir    string
	Debug      bool
	ConfigFile = "debsmith.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time
	// Global executors (declared, to be assigned in main)
	UserExec *Executor
	RootExec *Executor
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)

func init() {
	// No colors when stdout is redirected to a file or pipe.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.Disable()
	}
}
