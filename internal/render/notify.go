package render

import (
	"fmt"
	"io"

	"github.com/saveenergy/sockreport/internal/loader"
)

// Notices returns a loader notifier that prints one progress line per test.
func Notices(w io.Writer, noColor bool) loader.Notifier {
	f := &InteractiveFormatter{writer: w, noColor: noColor}
	return func(e loader.Event) {
		if e.Missing {
			fmt.Fprintf(w, "%s %s\n", f.paint(ansiRed, "✗ Missing"), e.Path)
			return
		}
		if e.Empty {
			fmt.Fprintf(w, "%s %s (no recognizable metrics)\n", f.paint(ansiYellow, "! Parsed"), e.Test.Name)
			return
		}
		fmt.Fprintf(w, "%s %s\n", f.paint(ansiGreen, "✓ Parsed"), e.Test.Name)
	}
}
