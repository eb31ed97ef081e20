package git

import (
	"context"
	"time"
)

// IClient is the subset of git the dashboard needs to describe a commit.
type IClient interface {
	CommitTime(ctx context.Context, dir, commit string) (time.Time, error)
	FirstBranch(ctx context.Context, dir, commit string) (string, error)
}

var _ IClient = (*Client)(nil)
