package files

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

// wildcard compiles a shell style pattern into a case-insensitive,
// unanchored regexp: "*.go" matches any path containing ".go".
func wildcard(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)")
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; ch {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return regexp.Compile(b.String())
}

// FileFilter selects the revisions among ids whose cached change set has
// a path matching pattern. Revisions never diffed are not considered.
func (c *Cache) FileFilter(ids []oid.ID, pattern string) (map[oid.ID]struct{}, error) {
	rx, err := wildcard(pattern)
	if err != nil {
		return nil, fmt.Errorf("file filter %q: %w", pattern, err)
	}
	matched := make(map[oid.ID]struct{})
	for _, id := range ids {
		cs, ok := c.Cached(id)
		if !ok {
			continue
		}
		for i := range cs.Len() {
			if rx.MatchString(cs.FileName(i)) {
				matched[id] = struct{}{}
				break
			}
		}
	}
	return matched, nil
}

// PatchFilter asks git which of ids add or remove occurrences of expr.
func (c *Cache) PatchFilter(ctx context.Context, ids []oid.ID, expr string, isRegexp bool) (map[oid.ID]struct{}, error) {
	matched := make(map[oid.ID]struct{})
	var stdin strings.Builder
	for _, id := range ids {
		if oid.IsWorkDir(id) {
			continue
		}
		stdin.WriteString(id.String() + "\n")
	}
	if stdin.Len() == 0 {
		return matched, nil
	}
	args := []string{"diff-tree", "--no-color", "-r", "-s", "--stdin"}
	if isRegexp {
		args = append(args, "--pickaxe-regex")
	}
	cmd := runner.Git(append(args, "-S"+expr)...)
	cmd.Stdin = []byte(stdin.String())
	out, err := c.run.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("patch filter: %w", err)
	}
	for _, line := range parse.NameList(string(out)) {
		id, err := oid.Parse(line)
		if err != nil {
			continue
		}
		matched[id] = struct{}{}
	}
	return matched, nil
}
