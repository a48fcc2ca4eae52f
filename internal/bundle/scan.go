// # internal/bundle/scan.go
package bundle

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// scan discovers source files under the root in lexical walk order, so
// module ids are deterministic across runs. The entry file is always
// kept even when an exclude pattern matches it.
func (p *pipeline) scan(rootAbs, entryAbs string) ([]string, error) {
	excludes, err := compileExcludes(p.req.ExcludeFiles)
	if err != nil {
		return nil, err
	}
	excludeDirs := make(map[string]bool, len(p.req.ExcludeDirs))
	for _, dir := range p.req.ExcludeDirs {
		excludeDirs[dir] = true
	}

	var files []string
	sawEntry := false
	err = filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootAbs && excludeDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		if path == entryAbs {
			sawEntry = true
			files = append(files, path)
			return nil
		}
		rel, relErr := filepath.Rel(rootAbs, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range excludes {
			if pattern.Match(rel) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawEntry {
		return nil, fmt.Errorf("entry module %s not found under %s", entryAbs, rootAbs)
	}
	return files, nil
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		globs = append(globs, compiled)
	}
	return globs, nil
}
