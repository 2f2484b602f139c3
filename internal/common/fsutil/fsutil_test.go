package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	for in, want := range map[string]string{
		"":                 "",
		"/srv/models":      "/srv/models",
		"models/waste":     "models/waste",
		"~":                home,
		"~/My image model": filepath.Join(home, "My image model"),
		"~/a/b/model.json": filepath.Join(home, "a", "b", "model.json"),
	} {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsFileIsDir(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "model.json")
	if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "nope")

	if !IsFile(f) || IsFile(dir) || IsFile(missing) {
		t.Fatalf("IsFile mismatch: file=%v dir=%v missing=%v", IsFile(f), IsFile(dir), IsFile(missing))
	}
	if !IsDir(dir) || IsDir(f) || IsDir(missing) {
		t.Fatalf("IsDir mismatch: dir=%v file=%v missing=%v", IsDir(dir), IsDir(f), IsDir(missing))
	}
}

func TestTrimQuotes(t *testing.T) {
	for in, want := range map[string]string{
		`  /models/x  `:         "/models/x",
		`"/srv/My image model"`: "/srv/My image model",
		`'/srv/model'`:          "/srv/model",
		`"`:                     "",
		``:                      "",
	} {
		if got := TrimQuotes(in); got != want {
			t.Errorf("TrimQuotes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadNonEmpty(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "shard.bin")
	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(full, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := ReadNonEmpty(full)
	if err != nil || len(b) != 3 {
		t.Fatalf("ReadNonEmpty(full) = %v, %v", b, err)
	}
	if _, err := ReadNonEmpty(empty); err != ErrEmptyFile {
		t.Fatalf("empty file: got %v, want ErrEmptyFile", err)
	}
	if _, err := ReadNonEmpty(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Fatalf("missing file: got %v", err)
	}
}
