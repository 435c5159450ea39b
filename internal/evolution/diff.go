package evolution

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// EntityDiff classifies a commit range into file-level changes. Entity-level
// classification (which functions/classes moved) happens inside each pass,
// which parses the current content of each inserted or modified file with
// the AST Adapter (the pre-change content is not parsed) — spec.md §4.5 "Diff
// granularity: entity, derived from a file-level git diff."
type EntityDiff struct {
	Insertions    []string // new file paths
	Deletions     []string // removed file paths
	Modifications []string // changed file paths
}

// ParseGitDiff runs `git diff --name-status` over the given range inside
// repoRoot and classifies each path, grounded on the teacher's
// internal/world/git_scanner.go subprocess-invocation style.
func ParseGitDiff(ctx context.Context, repoRoot, fromRev, toRev string) (EntityDiff, error) {
	var diff EntityDiff

	rng := toRev
	if fromRev != "" {
		rng = fromRev + ".." + toRev
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", rng)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return diff, fmt.Errorf("evolution: git diff %s: %w", rng, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status, path := fields[0], fields[len(fields)-1]
		switch status[0] {
		case 'A':
			diff.Insertions = append(diff.Insertions, path)
		case 'D':
			diff.Deletions = append(diff.Deletions, path)
		case 'M':
			diff.Modifications = append(diff.Modifications, path)
		case 'R':
			// Rename: treat as delete of the old path (fields[1] when status
			// carries a similarity score) plus insert of the new path.
			if len(fields) >= 3 {
				diff.Deletions = append(diff.Deletions, fields[1])
			}
			diff.Insertions = append(diff.Insertions, path)
		default:
			diff.Modifications = append(diff.Modifications, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return diff, fmt.Errorf("evolution: scan git diff output: %w", err)
	}
	return diff, nil
}
