package repo

import "testing"

func TestIgnoreMatcherBasenameGlob(t *testing.T) {
	m := newIgnoreMatcher([]string{"*.log", "*.tmp"})

	cases := map[string]bool{
		"a.log":         true,
		"dir/b.log":     true,
		"dir/sub/c.tmp": true,
		"main.go":       false,
	}
	for path, want := range cases {
		if got := m.matches(path); got != want {
			t.Errorf("matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIgnoreMatcherSlashedGlob(t *testing.T) {
	m := newIgnoreMatcher([]string{"build/*.o"})

	if !m.matches("build/main.o") {
		t.Error("expected build/main.o to match build/*.o")
	}
	if m.matches("src/build/main.o") {
		t.Error("a slashed pattern should anchor to the full path, not match as a suffix")
	}
}

func TestIgnoreMatcherDirectoryPrefix(t *testing.T) {
	m := newIgnoreMatcher([]string{"vendor/", "node_modules/"})

	if !m.matches("vendor/pkg/file.go") {
		t.Error("expected vendor/ to match anything under it")
	}
	if !m.matches("node_modules/left-pad/index.js") {
		t.Error("expected node_modules/ to match anything under it")
	}
	if m.matches("src/vendor-docs/readme.md") {
		t.Error("directory-prefix pattern should not match an unrelated path sharing a prefix string")
	}
}

func TestIgnoreMatcherNoGlobsMatchesNothing(t *testing.T) {
	m := newIgnoreMatcher(nil)
	if m.matches("anything.go") {
		t.Error("expected an empty glob list to match nothing")
	}
}
