package corpus

import "strings"

// FormatOutput normalizes raw generated text into corpus record lines:
// each line is trimmed, empty lines are dropped, and every remaining line
// ends with exactly one stop marker. Formatting already-formatted text is
// a no-op, so a batch can safely be formatted twice.
func FormatOutput(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, StopMarker) {
			line += StopMarker
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// CountLines returns the number of record lines in a formatted block.
func CountLines(formatted string) int {
	if formatted == "" {
		return 0
	}
	return strings.Count(formatted, "\n") + 1
}
