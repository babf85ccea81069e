// Package fsutil locates configuration files on disk.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches root for regular files ending
// with extension and returns their paths in lexical order.
func FindFilesByExtension(root string, extension string) ([]string, error) {
	if extension == "" {
		return nil, fmt.Errorf("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// FindAll expands paths into a flat list of files. Files are kept as given,
// whatever their extension; directories contribute their files ending with
// extension, in lexical order. A file reached twice is listed once, at its
// first position.
func FindAll(paths []string, extension string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		key := filepath.Clean(p)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		all = append(all, p)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		found, err := FindFilesByExtension(p, extension)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return all, nil
}
