// Package corpus reads and writes the line-based corpus format: one
// sentence (or one generated Q&A record) per line, each terminated by the
// stop marker.
package corpus

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// StopMarker terminates every record line. Downstream training tooling
// treats it as the end-of-record token.
const StopMarker = "<stop>"

// LoadSentences reads the corpus file and returns its sentences in file
// order. Each line is trimmed and stripped of a trailing stop marker;
// lines that are empty after normalization are dropped, so the returned
// slice may be shorter than the raw line count.
func LoadSentences(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()

	var sentences []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s := NormalizeSentence(scanner.Text())
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	return sentences, nil
}

// NormalizeSentence trims whitespace and removes a trailing stop marker.
func NormalizeSentence(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimSuffix(s, StopMarker)
	return strings.TrimSpace(s)
}
