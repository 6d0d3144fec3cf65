package parse

import (
	"bufio"
	"io"
)

// LocalChanges summarizes git status --porcelain=v2.
type LocalChanges struct {
	HasStaged   bool
	HasWorktree bool
	Untracked   int
}

// Dirty reports changes a commit could record. Untracked files alone do
// not count.
func (c LocalChanges) Dirty() bool { return c.HasStaged || c.HasWorktree }

func Status(r io.Reader) (LocalChanges, error) {
	var res LocalChanges
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case '1', '2', 'u':
			if len(line) < 4 {
				continue
			}
			if line[2] != '.' {
				res.HasStaged = true
			}
			if line[3] != '.' && line[3] != '?' {
				res.HasWorktree = true
			}
		case '?':
			res.Untracked++
		default:
			// '!' ignored, '#' headers
		}
	}
	return res, scanner.Err()
}
