package parse

import (
	"reflect"
	"strings"
	"testing"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

const (
	blobID = "0123456789abcdef0123456789abcdef01234567"
	tagID  = "89abcdef0123456789abcdef0123456789abcdef"
)

func TestTreeListing(t *testing.T) {
	t.Parallel()

	out := "100644 blob " + blobID + "\tz.txt\n" +
		"040000 tree " + blobID + "\tsrc\n" +
		"100644 blob " + blobID + "\t\"a b.txt\"\n"
	entries, err := Tree(out)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if want := []string{"src", "a b.txt", "z.txt"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	if !entries[0].IsDir() || entries[1].IsDir() {
		t.Fatalf("directory flags wrong: %+v", entries)
	}

	if _, err := Tree("100644 blob " + blobID + " missing-tab\n"); err == nil {
		t.Fatal("expected error for a line without a tab")
	}
}

func TestShowRefPeeled(t *testing.T) {
	t.Parallel()

	out := blobID + " refs/heads/main\n" +
		tagID + " refs/tags/v1\n" +
		blobID + " refs/tags/v1^{}\n" +
		blobID + " refs/tags/light\n"
	refs, err := ShowRef(out)
	if err != nil {
		t.Fatalf("ShowRef: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("len = %d, want 3", len(refs))
	}
	if refs[1].Name != "refs/tags/v1" || refs[1].ID != oid.MustParse(blobID) || refs[1].TagObject != oid.MustParse(tagID) {
		t.Fatalf("annotated tag not peeled: %+v", refs[1])
	}
	if !refs[1].Annotated() || refs[2].Annotated() {
		t.Fatalf("Annotated flags wrong: %+v", refs)
	}

	if _, err := ShowRef(blobID + " refs/tags/v2^{}\n"); err == nil {
		t.Fatal("expected error for a peeled ref without its tag")
	}
}

func TestPatchSectionsQuoted(t *testing.T) {
	t.Parallel()

	patch := strings.Join([]string{
		" a.txt | 2 +-",
		"",
		"diff --git a/a.txt b/a.txt",
		"-one",
		"+two",
		"diff --cc merged.go",
		"diff --git \"a/sp ace.txt\" \"b/sp ace.txt\"",
	}, "\n")
	got := PatchSections(patch, 10)
	want := []Section{
		{Path: "a.txt", Line: 13},
		{Path: "merged.go", Line: 16},
		{Path: "sp ace.txt", Line: 17},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PatchSections = %+v, want %+v", got, want)
	}
}
