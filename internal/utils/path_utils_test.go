package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestIsTreeFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.yaml":     true,
		"dir/b.yml":  true,
		"c.txtar":    false,
		"noext":      false,
		"yaml":       false,
		"d.yaml.bak": false,
	} {
		if got := IsTreeFile(path); got != want {
			t.Errorf("IsTreeFile(%q) = %v, want %v", path, got, want)
		}
	}
	if got := TrimTreeExt("main.yml"); got != "main" {
		t.Errorf("TrimTreeExt = %q", got)
	}
}

func TestCollectTreeFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("package: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b.yaml")
	write("sub/a.yml")
	write("sub/notes.txt")
	write(".hidden/c.yaml")
	write("resolvekit.yaml")

	got, err := CollectTreeFiles([]string{dir, filepath.Join(dir, "b.yaml")})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "b.yaml"), filepath.Join(dir, "sub", "a.yml")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := CollectTreeFiles([]string{filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected an error for a missing path")
	}
}
