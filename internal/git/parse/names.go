package parse

import "strings"

// NameList splits one-name-per-line output (ls-files, diff --name-only,
// rev-list) dropping blank lines and unquoting paths.
func NameList(out string) []string {
	var names []string
	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		names = append(names, Unquote(line))
	}
	return names
}
