// Package metadata resolves the date and branch shown for a result file.
//
// Structured result filenames embed both, so resolving them is pure string
// work. Bare commit identifiers from the older URL scheme are looked up in a
// git checkout; those lookups are cached because commits never change.
package metadata

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"perfdash/internal/git"
	"perfdash/internal/results"
	"perfdash/internal/telemetry"
)

// Metadata is what the views display about a run.
type Metadata struct {
	Date   string
	Branch string
}

// Resolver resolves metadata for result file names.
type Resolver struct {
	git     git.IClient
	repoDir string
	cache   *gocache.Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGit enables commit lookups for legacy names against the checkout in
// repoDir. Results are kept for ttl.
func WithGit(client git.IClient, repoDir string, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.git = client
		r.repoDir = repoDir
		r.cache = gocache.New(ttl, 2*ttl)
	}
}

// New creates a Resolver. Without WithGit only structured names resolve.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the metadata for n. A failing git lookup is not fatal: its
// error text takes the place of the date and branch.
func (r *Resolver) Resolve(ctx context.Context, n results.Name) Metadata {
	if !n.Legacy {
		return Metadata{Date: n.Date(), Branch: n.Branch}
	}
	if r.git == nil {
		return Metadata{Date: "unknown", Branch: "unknown"}
	}

	if cached, ok := r.cache.Get(n.Commit); ok {
		return cached.(Metadata)
	}

	md, err := r.lookup(ctx, n.Commit)
	if err != nil {
		telemetry.LogWarn("Commit metadata lookup failed", "commit", n.Commit, "error", err)
		msg := err.Error()
		return Metadata{Date: msg, Branch: msg}
	}
	r.cache.SetDefault(n.Commit, md)
	return md
}

// ResolveAll resolves several names concurrently, preserving order.
func (r *Resolver) ResolveAll(ctx context.Context, names []results.Name) []Metadata {
	out := make([]Metadata, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range names {
		g.Go(func() error {
			out[i] = r.Resolve(gctx, n)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) lookup(ctx context.Context, commit string) (Metadata, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		ts     time.Time
		branch string
	)
	g.Go(func() error {
		var err error
		ts, err = r.git.CommitTime(gctx, r.repoDir, commit)
		if err != nil {
			return fmt.Errorf("commit date: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		branch, err = r.git.FirstBranch(gctx, r.repoDir, commit)
		if err != nil {
			return fmt.Errorf("commit branch: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Metadata{}, err
	}
	return Metadata{Date: ts.Local().Format(results.DateLayout), Branch: branch}, nil
}
