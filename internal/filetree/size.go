package filetree

import (
	"fmt"
	"math"
)

// FormatSize renders a byte count the way file listings show it: megabytes
// with one decimal and no smaller units, e.g. "2.3MB" or "0.0MB". Halves
// round up.
func FormatSize(bytes int64) string {
	mb := float64(bytes) / 1024 / 1024
	return fmt.Sprintf("%.1fMB", math.Round(mb*10)/10)
}
