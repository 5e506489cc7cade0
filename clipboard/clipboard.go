// Package clipboard copies translations to the system clipboard.
package clipboard

import (
	"strings"

	cb "github.com/atotto/clipboard"
)

// Unsupported reports whether no clipboard utility is available, e.g. a
// Linux session without xclip, xsel or wl-copy.
func Unsupported() bool { return cb.Unsupported }

func Read() (string, error) {
	return cb.ReadAll()
}

// Copy writes text to the clipboard. Windows line endings are normalized
// so pasted text matches what was shown.
func Copy(text string) error {
	return cb.WriteAll(strings.ReplaceAll(text, "\r\n", "\n"))
}
