package report

import (
	"io"
	"os"

	"golang.org/x/term"
)

// TerminalWidth returns the width of w when it is a terminal and 0 otherwise,
// so piped output is never truncated.
func TerminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}
