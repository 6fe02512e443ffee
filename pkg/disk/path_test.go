package disk

import (
	"errors"
	"testing"
)

func TestResolveNormalizes(t *testing.T) {
	cases := map[string]string{
		"foo.txt":           "foo.txt",
		"/foo.txt":          "foo.txt",
		"bar/baz/foo.txt":   "bar/baz/foo.txt",
		"bar//baz/foo.txt":  "bar/baz/foo.txt",
		"./bar/./foo.txt":   "bar/foo.txt",
		"bar/../foo.txt":    "foo.txt",
		"  spaced.txt":      "spaced.txt",
		"a/b/../../foo.txt": "foo.txt",
	}
	for input, want := range cases {
		got, err := Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	for _, input := range []string{"", "   ", ".", "..", "../secret", "a/../../secret", "/.."} {
		if _, err := Resolve(input); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Resolve(%q) error = %v, want ErrInvalidPath", input, err)
		}
	}
}

func TestResolveFolder(t *testing.T) {
	folder, err := ResolveFolder("")
	if err != nil {
		t.Fatalf("ResolveFolder empty: %v", err)
	}
	if folder != "" {
		t.Fatalf("expected empty folder, got %q", folder)
	}

	folder, err = ResolveFolder("/uploads/images/")
	if err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	if folder != "uploads/images" {
		t.Fatalf("expected uploads/images, got %q", folder)
	}

	if _, err := ResolveFolder("../up"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}
