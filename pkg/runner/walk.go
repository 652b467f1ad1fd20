package runner

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// shebangProbe is how much of an extensionless file is read to detect its
// language.
const shebangProbe = 512

// Target is a file selected for processing.
type Target struct {
	Path     string
	Language string
}

// Discover expands roots into the files the rule set applies to. Explicit
// file roots bypass the include/exclude filters but still need a language
// with rules. Directories are walked in lexical order; excluded and vendored
// directories are pruned.
func (r *Runner) Discover(roots []string) ([]Target, error) {
	seen := make(map[string]bool)

	var targets []Target

	add := func(p string) {
		clean := filepath.Clean(p)
		if seen[clean] {
			return
		}

		seen[clean] = true

		lang, ok := r.detect(clean)
		if !ok {
			return
		}

		targets = append(targets, Target{Path: clean, Language: lang})
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}

		if !info.IsDir() {
			add(root)

			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return fmt.Errorf("relative path: %w", relErr)
			}

			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel != "." && r.prune(rel, d.Name()) {
					return filepath.SkipDir
				}

				return nil
			}

			if d.Type().IsRegular() && r.selected(rel, d.Name()) {
				add(p)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", root, err)
		}
	}

	return targets, nil
}

func (r *Runner) prune(rel, name string) bool {
	if matchAny(r.opts.Exclude, rel, name) {
		return true
	}

	return r.opts.SkipVendor && syntax.IsVendored(rel+"/")
}

func (r *Runner) selected(rel, name string) bool {
	if matchAny(r.opts.Exclude, rel, name) {
		return false
	}

	if r.opts.SkipVendor && syntax.IsVendored(rel) {
		return false
	}

	return len(r.opts.Include) == 0 || matchAny(r.opts.Include, rel, name)
}

// detect resolves the language of p and keeps it only when the rule set has
// rules for it.
func (r *Runner) detect(p string) (string, bool) {
	lang, ok := syntax.LanguageForExtension(filepath.Ext(p))
	if !ok && filepath.Ext(p) == "" {
		lang, ok = syntax.DetectLanguage(p, readHead(p))
	}

	if !ok {
		return "", false
	}

	_, has := r.set.Engine(lang)

	return lang, has
}

func readHead(p string) []byte {
	f, err := os.Open(p)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, shebangProbe)

	n, _ := f.Read(buf)

	return buf[:n]
}

// matchAny reports whether any glob matches the slash-separated relative
// path or the base name.
func matchAny(globs []string, rel, name string) bool {
	for _, g := range globs {
		if ok, _ := path.Match(g, rel); ok {
			return true
		}

		if ok, _ := path.Match(g, name); ok {
			return true
		}
	}

	return false
}
