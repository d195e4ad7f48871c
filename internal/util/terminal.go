package util

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// GetTerminalWidth returns the width of the terminal, or 80 if not a terminal
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		return 80
	}
	return width
}

// NewProgressBar returns a bar drawn on stderr, or nil when stderr is not a
// terminal or logging is quiet. A nil bar is safe to pass to StepProgress
// and FinishProgress.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	if IsQuiet() || !IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	width := 40
	if w := GetTerminalWidth(); w < 100 {
		width = 20
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(width),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// StepProgress advances bar by one
func StepProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		bar.Add(1)
	}
}

// FinishProgress completes and clears bar
func FinishProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}
