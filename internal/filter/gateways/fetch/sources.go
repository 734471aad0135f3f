// Package fetch retrieves filter lists from HTTP(S) URLs and local files.
package fetch

import (
	"bufio"
	"io"
	"strings"
)

// ReadSourceList parses a source list: one URL or path per line. Blank lines
// and lines starting with '#' are skipped; duplicates keep their first position.
func ReadSourceList(r io.Reader) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out, sc.Err()
}

// maxLineSize bounds a single filter-list line.
const maxLineSize = 1 << 20

// readLines splits r into lines without trimming them.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}
