package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoBranch is returned when no local branch contains a commit.
var ErrNoBranch = errors.New("no branch contains commit")

// defaultTimeout bounds a single git invocation when the caller's context has
// no deadline of its own.
const defaultTimeout = 10 * time.Second

// Client handles git interactions.
type Client struct {
	// Binary is the git executable; "git" when empty.
	Binary  string
	Timeout time.Duration
}

// NewClient creates a new Git client.
func NewClient() *Client {
	return &Client{Binary: "git", Timeout: defaultTimeout}
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := c.Binary
	if bin == "" {
		bin = "git"
	}

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Enforce no prompting
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s timed out after %s", args[0], timeout)
		}
		return "", fmt.Errorf("git %s failed: %w\nStderr: %s", args[0], err, strings.TrimSpace(errBuf.String()))
	}
	return outBuf.String(), nil
}

// CommitTime returns the committer timestamp of a commit.
func (c *Client) CommitTime(ctx context.Context, dir, commit string) (time.Time, error) {
	out, err := c.run(ctx, dir, "show", "-s", "--format=%ct", commit)
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected git show output %q: %w", strings.TrimSpace(out), err)
	}
	return time.Unix(secs, 0), nil
}

// BranchesContaining lists the local branches that contain commit, in git's
// order, without the current-branch marker.
func (c *Client) BranchesContaining(ctx context.Context, dir, commit string) ([]string, error) {
	out, err := c.run(ctx, dir, "branch", "--contains", commit)
	if err != nil {
		return nil, err
	}
	return parseBranches(out), nil
}

// FirstBranch returns the first branch containing commit.
func (c *Client) FirstBranch(ctx context.Context, dir, commit string) (string, error) {
	branches, err := c.BranchesContaining(ctx, dir, commit)
	if err != nil {
		return "", err
	}
	if len(branches) == 0 {
		return "", fmt.Errorf("%w %s", ErrNoBranch, commit)
	}
	return branches[0], nil
}

// RepoExists checks if the directory is a git repository.
func (c *Client) RepoExists(ctx context.Context, dir string) bool {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false
	}
	_, err := c.run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

func parseBranches(out string) []string {
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line == "" || strings.HasPrefix(line, "(HEAD detached") {
			continue
		}
		branches = append(branches, line)
	}
	return branches
}
