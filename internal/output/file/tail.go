package file

import (
	"bufio"
	"fmt"
	"os"
)

// Tail returns the last n lines of the log at path, oldest first. A missing
// log yields no lines.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file output: open %s: %w", path, err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("file output: read %s: %w", path, err)
	}
	return ring, nil
}
