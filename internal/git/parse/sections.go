package parse

import "strings"

// Section marks where the patch of one file starts.
type Section struct {
	Path string
	// Line is 1-based, shifted by the offset given to PatchSections.
	Line int
}

// PatchSections finds the per file headers of a patch, including the
// combined ones of a merge.
func PatchSections(text string, lineOffset int) []Section {
	var sections []Section
	for i, line := range strings.Split(text, "\n") {
		if p := patchHeaderPath(line); p != "" {
			sections = append(sections, Section{Path: p, Line: lineOffset + i + 1})
		}
	}
	return sections
}

func patchHeaderPath(line string) string {
	if rest, ok := strings.CutPrefix(line, "diff --git "); ok {
		toks := tokens(strings.TrimSpace(rest))
		if len(toks) < 2 {
			return ""
		}
		return strings.TrimPrefix(toks[1], "b/")
	}
	for _, prefix := range []string{"diff --cc ", "diff --combined "} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			if toks := tokens(strings.TrimSpace(rest)); len(toks) > 0 {
				return toks[0]
			}
		}
	}
	return ""
}
