package ui

import (
	"strings"
	"testing"

	"modstacker/collection"
)

func matrixFixture() collection.Collection {
	return collection.Collection{
		TargetVersions: []string{"1.21.1", "1.21.4"},
		Categories: []collection.Category{
			{Name: "Performance", Mods: []collection.Mod{
				{Title: "Sodium", Slug: "sodium", ClientSide: collection.SideRequired, ServerSide: collection.SideUnsupported,
					Checked: true, Versions: map[string]bool{"1.21.1": true, "1.21.4": false}},
				{Title: "Lithium", Slug: "lithium"},
			}},
			{Name: "Empty"},
		},
	}
}

func TestMark(t *testing.T) {
	tests := []struct {
		name string
		mod  collection.Mod
		want string
	}{
		{"unchecked", collection.Mod{}, MarkUnchecked},
		{"checking", collection.Mod{Checking: true}, MarkChecking},
		{"supported", collection.Mod{Checked: true, Versions: map[string]bool{"1.21.1": true}}, MarkSupported},
		{"unsupported", collection.Mod{Checked: true, Versions: map[string]bool{"1.21.1": false}}, MarkUnsupported},
		{"failed check", collection.Mod{Checked: true, Versions: map[string]bool{}}, MarkUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mark(tt.mod, "1.21.1"); got != tt.want {
				t.Errorf("Mark() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSideBadge(t *testing.T) {
	m := collection.Mod{ClientSide: collection.SideRequired, ServerSide: collection.SideOptional}
	if got := SideBadge(m); got != "C:req S:opt" {
		t.Errorf("SideBadge = %q", got)
	}
	if got := SideBadge(collection.Mod{}); got != "C:? S:?" {
		t.Errorf("SideBadge for missing sides = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Sodium", 10, "Sodium"},
		{"Sodium Extra", 7, "Sodium…"},
		{"Ёжик", 2, "Ё…"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestPlainMatrix(t *testing.T) {
	got := PlainMatrix(matrixFixture())
	want := "versions: 1.21.1 1.21.4\n" +
		"[Performance]\n" +
		"  sodium 1.21.1=✓ 1.21.4=✗\n" +
		"  lithium 1.21.1=· 1.21.4=·\n" +
		"[Empty]\n"
	if got != want {
		t.Errorf("PlainMatrix:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMatrixMentionsEverything(t *testing.T) {
	out := RenderMatrix(matrixFixture())
	for _, s := range []string{"Performance (2)", "Sodium", "Lithium", "1.21.4", "Empty (0)"} {
		if !strings.Contains(out, s) {
			t.Errorf("rendered matrix missing %q", s)
		}
	}
}

func TestMatrixDiff(t *testing.T) {
	before := matrixFixture()
	if d := MatrixDiff(before, before); d != "" {
		t.Errorf("identical matrices should not diff, got:\n%s", d)
	}

	after := before.Clone()
	after.Categories[0].Mods[1].Checked = true
	after.Categories[0].Mods[1].Versions = map[string]bool{"1.21.1": true, "1.21.4": true}

	d := MatrixDiff(before, after)
	if !strings.Contains(d, "-  lithium 1.21.1=· 1.21.4=·") || !strings.Contains(d, "+  lithium 1.21.1=✓ 1.21.4=✓") {
		t.Errorf("unexpected diff:\n%s", d)
	}
	if strings.Contains(d, "-  sodium") {
		t.Errorf("unchanged line reported as removed:\n%s", d)
	}
}
