package parse

import (
	"path"
	"strconv"
	"strings"
)

// Unquote reverses git's C-style path quoting ("a\tb", "\303\251"). Plain
// paths are returned unchanged.
func Unquote(p string) string {
	if len(p) < 2 || p[0] != '"' || p[len(p)-1] != '"' {
		return p
	}
	if s, err := strconv.Unquote(p); err == nil {
		return s
	}
	// not a Go literal after all: drop the quotes and the escapes
	var b strings.Builder
	escaped := false
	for i := 1; i < len(p)-1; i++ {
		ch := p[i]
		if !escaped && ch == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteByte(ch)
	}
	return b.String()
}

// SplitPath separates p into its directory, with a trailing slash, and
// base name. Top level files have an empty directory.
func SplitPath(p string) (dir, name string) {
	dir, name = path.Split(p)
	return dir, name
}

// tokens splits a diff header on blanks, keeping quoted paths whole.
func tokens(s string) []string {
	var out []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return out
		}
		if s[0] == '"' {
			i := 1
			for i < len(s) {
				if s[i] == '\\' {
					i += 2
					continue
				}
				if s[i] == '"' {
					i++
					break
				}
				i++
			}
			i = min(i, len(s))
			out = append(out, Unquote(s[:i]))
			s = s[i:]
			continue
		}
		j := strings.IndexAny(s, " \t")
		if j < 0 {
			j = len(s)
		}
		out = append(out, s[:j])
		s = s[j:]
	}
}
