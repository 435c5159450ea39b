package encoder

import (
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store/algo"
)

// DiscoverFiles implements spec.md §4.4 "File discovery": ask git for
// tracked + untracked-non-ignored files when git integration is enabled and
// root is a working tree, otherwise fall back to a depth-capped directory
// walk. Either way, include/exclude globs are applied to relative paths and
// the result is sorted deterministically. Grounded on the teacher's
// internal/world/git_scanner.go (git invocation style) and internal/world/fs.go
// (walk-with-cache style, simplified here — the semantic cache, not a
// separate file-hash cache, is this module's incremental-work mechanism).
func DiscoverFiles(ctx context.Context, root string, cfg config.DiscoveryConfig) (files []string, warnings []string, err error) {
	timer := logging.StartTimer(logging.CategoryEncoder, "DiscoverFiles")
	defer timer.Stop()

	var rel []string
	if cfg.RespectGitignore {
		rel, err = gitLsFiles(ctx, root)
		if err != nil {
			logging.Get(logging.CategoryEncoder).Warn("git discovery failed, falling back to walk: %v", err)
			warnings = append(warnings, "git discovery unavailable, used directory walk: "+err.Error())
			rel = nil
		}
	}
	if rel == nil {
		rel, err = walkDir(root, cfg.MaxDepth)
		if err != nil {
			return nil, warnings, err
		}
	}

	includeRe := make([]patternMatcher, 0, len(cfg.Include))
	for _, pat := range cfg.Include {
		if re, err := algo.CompilePathPattern(pat); err == nil {
			includeRe = append(includeRe, re)
		} else {
			warnings = append(warnings, "invalid include pattern "+pat+": "+err.Error())
		}
	}
	excludeRe := make([]patternMatcher, 0, len(cfg.Exclude))
	for _, pat := range cfg.Exclude {
		if re, err := algo.CompilePathPattern(pat); err == nil {
			excludeRe = append(excludeRe, re)
		} else {
			warnings = append(warnings, "invalid exclude pattern "+pat+": "+err.Error())
		}
	}

	out := make([]string, 0, len(rel))
	for _, r := range rel {
		r = filepath.ToSlash(r)
		if !matchesAny(includeRe, r) {
			continue
		}
		if matchesAny(excludeRe, r) {
			continue
		}
		out = append(out, r)
	}
	sort.Strings(out)
	return out, warnings, nil
}

type patternMatcher interface{ MatchString(string) bool }

func matchesAny(patterns []patternMatcher, path string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// gitLsFiles returns tracked + untracked-non-ignored files relative to root,
// per spec.md §4.4 step 1 and testable property 8. A non-git directory or
// missing git binary returns an error the caller treats as "fall back", not
// fatal.
func gitLsFiles(ctx context.Context, root string) ([]string, error) {
	checkCmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	checkCmd.Dir = root
	if err := checkCmd.Run(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	files := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			files = append(files, l)
		}
	}
	return files, nil
}

// walkDir falls back to a depth-capped filepath.WalkDir when git discovery
// is disabled or unavailable. Unreadable directories are skipped with a
// warning, never abort the walk (spec.md §4.4).
func walkDir(root string, maxDepth int) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Get(logging.CategoryEncoder).Warn("walk error at %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if d.IsDir() {
			if maxDepth > 0 && depth > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if maxDepth > 0 && depth > maxDepth {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	return out, err
}
