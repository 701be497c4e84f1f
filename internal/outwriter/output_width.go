package outwriter

import (
	"os"

	"github.com/huangsam/shellcache/internal/contract"
	"golang.org/x/term"
)

// GetMaxTableNameWidth calculates the maximum width for partition names in
// table output based on terminal width.
func GetMaxTableNameWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // CI and pipes
		} else {
			termWidth = detectedWidth
		}
	}

	// Kind + Version + Entries + Bytes + Created, plus borders and padding
	baseWidth := 75

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
