package parse

import (
	"reflect"
	"strings"
	"testing"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

const (
	blobA = "1111111111111111111111111111111111111111"
	blobB = "2222222222222222222222222222222222222222"
	blobC = "3333333333333333333333333333333333333333"
)

func TestRawDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []FileChange
	}{
		{
			name: "modified and added",
			in: strings.Join([]string{
				"4444444444444444444444444444444444444444",
				":100644 100644 " + blobA + " " + blobB + " M\tsrc/main.go",
				":000000 100644 " + blobA + " " + blobB + " A\tREADME",
				"",
			}, "\n"),
			want: []FileChange{
				{Status: 'M', Dir: "src/", Name: "main.go", MergeParent: 1},
				{Status: 'A', Dir: "", Name: "README", MergeParent: 1},
			},
		},
		{
			name: "rename with similarity",
			in:   ":100644 100644 " + blobA + " " + blobB + " R086\told/name.txt\tnew/dir/name.txt\n",
			want: []FileChange{{
				Status: 'R', Similarity: 86,
				Dir: "new/dir/", Name: "name.txt",
				OrigDir: "old/", OrigName: "name.txt",
				MergeParent: 1,
			}},
		},
		{
			name: "quoted path",
			in:   ":100644 100644 " + blobA + " " + blobB + " M\t\"dir/caf\\303\\251\\ttab.txt\"\n",
			want: []FileChange{{Status: 'M', Dir: "dir/", Name: "café\ttab.txt", MergeParent: 1}},
		},
		{
			name: "merge diffed against every parent",
			in: strings.Join([]string{
				"5555555555555555555555555555555555555555",
				":100644 100644 " + blobA + " " + blobB + " M\ta.txt",
				"5555555555555555555555555555555555555555",
				":100644 100644 " + blobA + " " + blobC + " M\ta.txt",
				":100644 000000 " + blobA + " " + blobC + " D\tb.txt",
			}, "\n"),
			want: []FileChange{
				{Status: 'M', Name: "a.txt", MergeParent: 1},
				{Status: 'M', Name: "a.txt", MergeParent: 2},
				{Status: 'D', Name: "b.txt", MergeParent: 2},
			},
		},
		{
			name: "combined",
			in: strings.Join([]string{
				"5555555555555555555555555555555555555555",
				"::100644 100644 100644 " + blobA + " " + blobB + " " + blobC + " MM\tboth.txt",
				"::000000 000000 100644 " + blobA + " " + blobB + " " + blobC + " AA\tnew.txt",
			}, "\n"),
			want: []FileChange{
				{Status: 'M', Name: "both.txt", MergeParent: 1, Combined: true, Statuses: "MM"},
				{Status: 'A', Name: "new.txt", MergeParent: 1, Combined: true, Statuses: "AA"},
			},
		},
		{
			name: "garbage lines are skipped",
			in:   ":bogus\n:100644 100644 " + blobA + " " + blobB + " M\tok\n",
			want: []FileChange{{Status: 'M', Name: "ok", MergeParent: 1}},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RawDiff(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("RawDiff() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFileChangePaths(t *testing.T) {
	t.Parallel()

	c := RawDiff(":100644 100644 " + blobA + " " + blobB + " C075\ta/x.go\tb/y.go\n")[0]
	if c.Path() != "b/y.go" || c.OrigPath() != "a/x.go" {
		t.Fatalf("Path() = %q, OrigPath() = %q", c.Path(), c.OrigPath())
	}
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`plain.txt`:          "plain.txt",
		`"with space.txt"`:   "with space.txt",
		`"a\"quote"`:         `a"quote`,
		`"\303\251t\303\251"`: "été",
		`"bad\qescape"`:      "badqescape",
		`"`:                  `"`,
	}
	for in, want := range tests {
		if got := Unquote(in); got != want {
			t.Fatalf("Unquote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameList(t *testing.T) {
	t.Parallel()

	got := NameList("a.txt\n\n\"sp ace\"\r\ndir/b.txt\n")
	want := []string{"a.txt", "sp ace", "dir/b.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NameList() = %q, want %q", got, want)
	}
}

func TestTree(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"100644 blob " + blobA + "\tzeta.txt",
		"040000 tree " + blobB + "\tsrc",
		"100755 blob " + blobC + "\talpha.sh",
		"040000 tree " + blobA + "\tdocs",
	}, "\n")
	got, err := Tree(in)
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	var names []string
	for _, e := range got {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "docs,src,alpha.sh,zeta.txt" {
		t.Fatalf("Tree() order = %v", names)
	}
	if !got[0].IsDir() || got[2].Mode != "100755" || got[2].ID != oid.MustParse(blobC) {
		t.Fatalf("unexpected entries: %+v", got)
	}

	if _, err := Tree("garbage line"); err == nil {
		t.Fatal("expected error for malformed ls-tree output")
	}
}

func TestShowRef(t *testing.T) {
	t.Parallel()

	const (
		commit1 = "1111111111111111111111111111111111111111"
		commit2 = "2222222222222222222222222222222222222222"
		tagObj  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	)
	in := strings.Join([]string{
		commit1 + " refs/heads/main",
		commit1 + " refs/remotes/origin/main",
		commit2 + " refs/tags/v1.0",
		tagObj + " refs/tags/v2.0",
		commit1 + " refs/tags/v2.0^{}",
		"",
	}, "\n")

	got, err := ShowRef(in)
	if err != nil {
		t.Fatalf("ShowRef() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("ShowRef() returned %d refs, want 4", len(got))
	}
	if got[0].Name != "refs/heads/main" || got[0].Annotated() {
		t.Fatalf("unexpected first ref: %+v", got[0])
	}
	if got[2].Name != "refs/tags/v1.0" || got[2].Annotated() || got[2].ID != oid.MustParse(commit2) {
		t.Fatalf("lightweight tag: %+v", got[2])
	}
	v2 := got[3]
	if v2.ID != oid.MustParse(commit1) || v2.TagObject != oid.MustParse(tagObj) || !v2.Annotated() {
		t.Fatalf("annotated tag not peeled: %+v", v2)
	}
}

func TestShowRefErrors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"only-one-field",
		"nothex refs/heads/main",
		"1111111111111111111111111111111111111111 refs/tags/x^{}",
	} {
		if _, err := ShowRef(in); err == nil {
			t.Fatalf("ShowRef(%q) expected error", in)
		}
	}
}

func TestPatchSections(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"commit 5555",
		"diff --git a/one.txt b/one.txt",
		"@@ -1 +1 @@",
		"diff --git \"a/sp ace.txt\" \"b/sp ace.txt\"",
		"diff --cc merged.txt",
	}, "\n")
	got := PatchSections(in, 10)
	want := []Section{
		{Path: "one.txt", Line: 12},
		{Path: "sp ace.txt", Line: 14},
		{Path: "merged.txt", Line: 15},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PatchSections() = %+v, want %+v", got, want)
	}
}
