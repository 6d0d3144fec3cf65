package parse

import (
	"fmt"
	"strings"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

// Ref is one ref from show-ref --dereference. ID is the commit the ref
// points at; TagObject is set for annotated tags only.
type Ref struct {
	Name      string
	ID        oid.ID
	TagObject oid.ID
}

func (r Ref) Annotated() bool { return !r.TagObject.IsZero() }

// ShowRef decodes show-ref --dereference output in listing order. A
// "^{}" line peels the annotated tag listed before it.
func ShowRef(out string) ([]Ref, error) {
	var refs []Ref
	index := map[string]int{}
	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("unexpected show-ref output line: %q", line)
		}
		id, err := oid.Parse(parts[0])
		if err != nil {
			return nil, fmt.Errorf("unexpected show-ref output line: %q: %w", line, err)
		}
		name := parts[1]
		if base, ok := strings.CutSuffix(name, "^{}"); ok {
			i, seen := index[base]
			if !seen {
				return nil, fmt.Errorf("peeled ref %q without its tag", base)
			}
			refs[i].TagObject = refs[i].ID
			refs[i].ID = id
			continue
		}
		index[name] = len(refs)
		refs = append(refs, Ref{Name: name, ID: id})
	}
	return refs, nil
}
