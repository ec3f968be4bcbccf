// Package delta finds files changed relative to a baseline branch so
// tasks can restrict themselves to affected packages and files.
package delta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// TargetBranchEnv overrides the configured baseline branch.
const TargetBranchEnv = "THEMEFORGE_TARGET_BRANCH"

// ciTargetVars name the merge-target branch on common CI systems.
var ciTargetVars = []string{
	"CI_MERGE_REQUEST_TARGET_BRANCH_NAME",
	"GITHUB_BASE_REF",
	"BITBUCKET_PR_DESTINATION_BRANCH",
	"CHANGE_TARGET",
}

// Delta computes the changed file set for a working tree.
type Delta struct {
	RootDir      string
	TargetBranch string
}

// Changed returns slash-separated paths, relative to RootDir, that differ
// from the baseline: uncommitted work plus commits not on the target
// branch. A nil map means "everything", which is returned whenever git
// cannot answer (not a repository, no baseline).
func (d *Delta) Changed(ctx context.Context) (map[string]bool, error) {
	logger := log.FromContext(ctx)

	repo, err := git.PlainOpenWithOptions(d.RootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		logger.Debug("delta: not a git repository, using all files", "root", d.RootDir)
		return nil, nil
	}
	prefix, err := d.repoPrefix(repo)
	if err != nil {
		return nil, err
	}

	changed := make(map[string]bool)
	if err := d.addWorktree(repo, changed); err != nil {
		logger.Debug("delta: worktree status failed, using all files", "err", err)
		return nil, nil
	}
	if err := d.addBranch(ctx, repo, changed); err != nil {
		logger.Debug("delta: branch diff failed, using all files", "err", err)
		return nil, nil
	}

	out := make(map[string]bool, len(changed))
	for p := range changed {
		if rel, ok := strings.CutPrefix(p, prefix); ok {
			out[rel] = true
		}
	}
	logger.Debug("delta computed", "changed", len(out))
	return out, nil
}

// Paths returns the changed set as a sorted slice; nil stays nil.
func Paths(changed map[string]bool) []string {
	if changed == nil {
		return nil
	}
	out := make([]string, 0, len(changed))
	for p := range changed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// repoPrefix is RootDir's path inside the repository, with a trailing slash,
// or "" when RootDir is the repository root.
func (d *Delta) repoPrefix(repo *git.Repository) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	top, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs(d.RootDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(top, root)
	if err != nil || rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel) + "/", nil
}

func (d *Delta) addWorktree(repo *git.Repository, changed map[string]bool) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	status, err := wt.Status()
	if err != nil {
		return err
	}
	for path, s := range status {
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		changed[path] = true
	}
	return nil
}

func (d *Delta) addBranch(ctx context.Context, repo *git.Repository, changed map[string]bool) error {
	branch := d.targetBranch(repo)

	headRef, err := repo.Head()
	if err != nil {
		// Unborn HEAD: the worktree status already covers everything.
		return nil
	}
	head, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return fmt.Errorf("reading HEAD commit: %w", err)
	}

	targetRef, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		targetRef, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
		if err != nil {
			return nil
		}
	}
	target, err := repo.CommitObject(targetRef.Hash())
	if err != nil {
		return fmt.Errorf("reading %s commit: %w", branch, err)
	}

	// On the target branch itself, diff the latest commit instead.
	if head.Hash == target.Hash {
		if head.NumParents() == 0 {
			return nil
		}
		if target, err = head.Parent(0); err != nil {
			return nil
		}
	}

	headTree, err := head.Tree()
	if err != nil {
		return err
	}
	targetTree, err := target.Tree()
	if err != nil {
		return err
	}
	changes, err := object.DiffTreeWithOptions(ctx, targetTree, headTree, &object.DiffTreeOptions{})
	if err != nil {
		return fmt.Errorf("diffing trees: %w", err)
	}
	for _, c := range changes {
		if name := changeName(c); name != "" {
			changed[name] = true
		}
	}
	return nil
}

// targetBranch picks the baseline: env override, config, CI variables,
// origin/HEAD, then "main".
func (d *Delta) targetBranch(repo *git.Repository) string {
	if b := os.Getenv(TargetBranchEnv); b != "" {
		return b
	}
	if d.TargetBranch != "" {
		return d.TargetBranch
	}
	for _, v := range ciTargetVars {
		if b := os.Getenv(v); b != "" {
			return b
		}
	}
	if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), false); err == nil {
		if b, ok := strings.CutPrefix(ref.Target().String(), "refs/remotes/origin/"); ok {
			return b
		}
	}
	return "main"
}

func changeName(c *object.Change) string {
	action, err := c.Action()
	if err != nil {
		return ""
	}
	switch action {
	case merkletrie.Insert, merkletrie.Modify:
		return c.To.Name
	case merkletrie.Delete:
		return c.From.Name
	}
	return ""
}
