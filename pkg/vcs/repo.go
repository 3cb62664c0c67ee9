package vcs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// NoChanges is returned by AllChanges for a clean worktree.
const NoChanges = "No changes detected"

// ErrNotRepository is returned by Open when dir is not inside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// FileChange is one path from git status.
type FileChange struct {
	Path     string
	Staged   git.StatusCode
	Unstaged git.StatusCode
}

// Commit is a log entry.
type Commit struct {
	Hash    string
	Author  string
	Message string
	When    time.Time
}

// Repo is a read-only view of a repository for building prompts.
type Repo struct {
	root string
	repo *git.Repository
}

// Open finds the repository containing dir.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(strings.TrimSpace(dir), &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotRepository)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Repo{root: wt.Filesystem.Root(), repo: repo}, nil
}

// Root returns the worktree root.
func (r *Repo) Root() string {
	return r.root
}

// Branch returns the branch name, or the short hash for a detached HEAD.
func (r *Repo) Branch() string {
	head, err := r.repo.Head()
	if err != nil {
		return "unknown"
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return shortHash(head.Hash())
}

// Status lists changed paths sorted by name. Untracked files are included.
func (r *Repo) Status() ([]FileChange, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get git status: %w", err)
	}

	changes := make([]FileChange, 0, len(status))
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		changes = append(changes, FileChange{Path: path, Staged: st.Staging, Unstaged: st.Worktree})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// StagedDiff renders a unified diff of the index against HEAD.
func (r *Repo) StagedDiff() (string, error) {
	changes, err := r.Status()
	if err != nil {
		return "", err
	}
	head, err := r.headTree()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, c := range changes {
		if c.Staged == git.Unmodified || c.Staged == git.Untracked {
			continue
		}
		before, err := treeContents(head, c.Path)
		if err != nil {
			return "", err
		}
		after, err := r.indexContents(c.Path)
		if err != nil {
			return "", err
		}
		sb.WriteString(udiff.Unified("a/"+c.Path, "b/"+c.Path, before, after))
	}
	return sb.String(), nil
}

// UnstagedDiff renders a unified diff of tracked worktree files against the index.
func (r *Repo) UnstagedDiff() (string, error) {
	changes, err := r.Status()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, c := range changes {
		if c.Unstaged == git.Unmodified || c.Unstaged == git.Untracked {
			continue
		}
		before, err := r.indexContents(c.Path)
		if err != nil {
			return "", err
		}
		after, err := r.worktreeContents(c.Path)
		if err != nil {
			return "", err
		}
		sb.WriteString(udiff.Unified("a/"+c.Path, "b/"+c.Path, before, after))
	}
	return sb.String(), nil
}

// AllChanges combines the staged and unstaged diffs into one prompt-ready text.
func (r *Repo) AllChanges() (string, error) {
	staged, err := r.StagedDiff()
	if err != nil {
		return "", fmt.Errorf("failed to get staged diff: %w", err)
	}
	unstaged, err := r.UnstagedDiff()
	if err != nil {
		return "", fmt.Errorf("failed to get unstaged diff: %w", err)
	}

	switch {
	case staged != "" && unstaged != "":
		return "Staged changes:\n" + staged + "\n\nUnstaged changes:\n" + unstaged, nil
	case staged != "":
		return staged, nil
	case unstaged != "":
		return unstaged, nil
	}
	return NoChanges, nil
}

// Log returns up to n commits reachable from HEAD, newest first.
func (r *Repo) Log(n int) ([]Commit, error) {
	if n <= 0 {
		return nil, nil
	}
	iter, err := r.repo.Log(&git.LogOptions{})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commit history: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < n {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get commit history: %w", err)
		}
		commits = append(commits, Commit{
			Hash:    shortHash(c.Hash),
			Author:  c.Author.Name,
			Message: strings.TrimSpace(c.Message),
			When:    c.Author.When,
		})
	}
	return commits, nil
}

func (r *Repo) headTree() (*object.Tree, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	return commit.Tree()
}

func treeContents(tree *object.Tree, path string) (string, error) {
	if tree == nil {
		return "", nil
	}
	f, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s from HEAD: %w", path, err)
	}
	return f.Contents()
}

func (r *Repo) indexContents(path string) (string, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return "", fmt.Errorf("read index: %w", err)
	}
	entry, err := idx.Entry(path)
	if err != nil {
		// Removed from the index.
		return "", nil
	}
	blob, err := object.GetBlob(r.repo.Storer, entry.Hash)
	if err != nil {
		return "", fmt.Errorf("read %s from index: %w", path, err)
	}
	rd, err := blob.Reader()
	if err != nil {
		return "", fmt.Errorf("read %s from index: %w", path, err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return "", fmt.Errorf("read %s from index: %w", path, err)
	}
	return string(data), nil
}

func (r *Repo) worktreeContents(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(path)))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func shortHash(h plumbing.Hash) string {
	s := h.String()
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
