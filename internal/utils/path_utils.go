package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/funvibe/resolvekit/internal/config"
)

// IsTreeFile reports whether path has a recognized syntax tree extension.
func IsTreeFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range config.TreeFileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// TrimTreeExt removes a recognized tree extension from name.
func TrimTreeExt(name string) string {
	if IsTreeFile(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// CollectTreeFiles expands paths into the tree files they name. Files are
// kept as given; directories are walked recursively for tree files, skipping
// hidden directories. The result is sorted and free of duplicates.
func CollectTreeFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsTreeFile(path) && filepath.Base(path) != config.ConfigFileName && filepath.Base(path) != "resolvekit.yml" {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}
