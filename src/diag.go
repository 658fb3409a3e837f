package rawxfer

// Diagnostics for whoever is running the programs by hand.
// Always stderr: stdout is usually the link itself.

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

var diag = log.NewWithOptions(os.Stderr, log.Options{
	Level:           log.WarnLevel,
	ReportTimestamp: true,
	TimeFunction:    log.NowUTC,
})

func diag_init(prog string, debug bool) {
	diag.SetPrefix(prog)

	if debug {
		diag.SetLevel(log.DebugLevel)
	} else {
		diag.SetLevel(log.WarnLevel)
	}
}

// diag_set_output is for tests that want to look at what was said.
func diag_set_output(w io.Writer) {
	diag.SetOutput(w)
}
