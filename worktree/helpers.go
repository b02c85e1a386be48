package worktree

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var nameRgx = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateWorktreeName enforces ^[A-Za-z0-9_-]+$, non-empty, no leading dot
// (the regex admits no '.' at all; the leading-dot check runs first only to
// give dotfile-like names a more specific error).
func ValidateWorktreeName(name string) error {
	if name == "" {
		return fmt.Errorf("worktree name cannot be empty")
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("worktree name %q cannot begin with '.'", name)
	}
	if !nameRgx.MatchString(name) {
		return fmt.Errorf("worktree name %q must match ^[A-Za-z0-9_-]+$", name)
	}
	return nil
}

var durationSuffixSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
}

// ParseDuration accepts bare digits (seconds) or digits followed by one of
// the suffixes s, m, h, d, w.
func ParseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration string cannot be empty")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	suffix := s[len(s)-1]
	mult, ok := durationSuffixSeconds[suffix]
	if !ok {
		return 0, fmt.Errorf("unknown duration suffix %q, valid suffixes are s, m, h, d, w", string(suffix))
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return n * mult, nil
}

// FormatDuration picks the largest unit that divides secs exactly, from
// weeks down to seconds, falling back to bare seconds. Negative values
// carry a leading '-'.
func FormatDuration(secs int64) string {
	sign := ""
	abs := secs
	if secs < 0 {
		sign = "-"
		abs = -secs
	}

	units := []struct {
		suffix string
		size   int64
	}{
		{"w", 604800},
		{"d", 86400},
		{"h", 3600},
		{"m", 60},
	}

	for _, u := range units {
		if abs != 0 && abs%u.size == 0 {
			return fmt.Sprintf("%s%d%s", sign, abs/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%s%ds", sign, abs)
}

// ResolveWorktreeRoot resolves the worktree root directory: the
// META_WORKTREES environment variable first, then the manifest's
// worktrees_dir field joined to workspaceDir, then
// <workspaceDir>/.worktrees.
func ResolveWorktreeRoot(workspaceDir, manifestWorktreesDir string) string {
	if env := os.Getenv("META_WORKTREES"); env != "" {
		return env
	}
	if manifestWorktreesDir != "" {
		if filepath.IsAbs(manifestWorktreesDir) {
			return manifestWorktreesDir
		}
		return filepath.Join(workspaceDir, manifestWorktreesDir)
	}
	return filepath.Join(workspaceDir, ".worktrees")
}

// EnsureWorktreesInGitignore idempotently appends "<relName>/" to
// <workspaceDir>/.gitignore, creating the file if it does not exist.
// Existing lines are matched trimmed, with or without a trailing slash, so
// repeated calls never duplicate the entry.
func EnsureWorktreesInGitignore(workspaceDir, relName string) error {
	entry := strings.TrimSuffix(relName, "/") + "/"
	path := filepath.Join(workspaceDir, ".gitignore")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening .gitignore: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == entry || line == strings.TrimSuffix(entry, "/") {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading .gitignore: %w", err)
	}

	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		return fmt.Errorf("seeking .gitignore: %w", err)
	}
	if _, err := f.WriteString(entry + "\n"); err != nil {
		return fmt.Errorf("appending to .gitignore: %w", err)
	}
	return nil
}

// ResolveBranch applies the precedence: an explicit per-repo branch (from
// "alias:branch") beats the command-wide --branch flag, which beats
// defaulting to the worktree's own name.
func ResolveBranch(worktreeName, branchFlag, perRepoBranch string) string {
	if perRepoBranch != "" {
		return perRepoBranch
	}
	if branchFlag != "" {
		return branchFlag
	}
	return worktreeName
}

// ParseRepoSpec splits "alias" or "alias:branch" into its parts.
func ParseRepoSpec(spec string) (alias, branch string) {
	if idx := strings.Index(spec, ":"); idx != -1 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}
